package inspections

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
)

type fakeStore struct {
	mu    sync.Mutex
	saves int
	fail  bool
}

func (s *fakeStore) Save(ctx context.Context, userID, fileName string, r io.Reader) (string, int64, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", 0, "", errors.New("disk full")
	}
	s.saves++
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, "", err
	}
	return fmt.Sprintf("%s/%d-%s", userID, s.saves, fileName), int64(len(data)), "image/png", nil
}

func (s *fakeStore) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func pngImage(name string) ImageUpload {
	data := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	return ImageUpload{FileName: name, Data: data}
}

func newTestService(eng *scriptedEngine, store *fakeStore) (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	tracker := newTestTracker(eng, repo, &captureSink{})
	return &Service{
		Repo:    repo,
		Store:   store,
		Engine:  eng,
		Tracker: tracker,
		Policy:  DefaultUploadPolicy(),
	}, repo
}

func TestSubmitCreatesPendingJob(t *testing.T) {
	eng := &scriptedEngine{}
	store := &fakeStore{}
	svc, repo := newTestService(eng, store)
	defer svc.Tracker.Close()

	job, err := svc.Submit(context.Background(), "user-1", []ImageUpload{pngImage("a.png"), pngImage("b.png")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.ID != "job-1" || job.Status != StatusPending {
		t.Fatalf("job = %+v, want pending job-1", job)
	}
	if len(job.ImageKeys) != 2 {
		t.Fatalf("image keys = %v, want 2", job.ImageKeys)
	}
	if _, err := repo.GetByID(context.Background(), job.ID); err != nil {
		t.Fatalf("job not persisted: %v", err)
	}
}

func TestSubmitEmptySetSkipsStorageAndEngine(t *testing.T) {
	eng := &scriptedEngine{}
	store := &fakeStore{}
	svc, _ := newTestService(eng, store)
	defer svc.Tracker.Close()

	_, err := svc.Submit(context.Background(), "user-1", nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if store.saveCount() != 0 {
		t.Fatalf("store touched %d times on invalid input", store.saveCount())
	}
}

func TestSubmitRejectsOversizeAndBadFormat(t *testing.T) {
	eng := &scriptedEngine{}
	store := &fakeStore{}
	svc, _ := newTestService(eng, store)
	defer svc.Tracker.Close()

	big := ImageUpload{FileName: "big.png", Data: make([]byte, int(DefaultUploadPolicy().MaxBytesPerImage)+1)}
	if _, err := svc.Submit(context.Background(), "user-1", []ImageUpload{big}); err == nil {
		t.Fatal("oversize image accepted")
	}

	text := ImageUpload{FileName: "notes.txt", Data: []byte("just some text, no image here at all")}
	if _, err := svc.Submit(context.Background(), "user-1", []ImageUpload{text}); err == nil {
		t.Fatal("non-image payload accepted")
	}
	if store.saveCount() != 0 {
		t.Fatalf("store touched %d times on invalid input", store.saveCount())
	}
}

func TestSubmitStoreFailureIsTransportError(t *testing.T) {
	eng := &scriptedEngine{}
	store := &fakeStore{fail: true}
	svc, _ := newTestService(eng, store)
	defer svc.Tracker.Close()

	_, err := svc.Submit(context.Background(), "user-1", []ImageUpload{pngImage("a.png")})
	if !errors.Is(err, ErrUploadTransport) {
		t.Fatalf("err = %v, want ErrUploadTransport", err)
	}
}

func TestGetHidesForeignJobs(t *testing.T) {
	eng := &scriptedEngine{}
	svc, repo := newTestService(eng, &fakeStore{})
	defer svc.Tracker.Close()

	repo.Create(context.Background(), pendingJob("job-1", "owner"))

	if _, err := svc.Get(context.Background(), "intruder", "user", "job-1"); err != ErrNotFound {
		t.Fatalf("foreign get = %v, want ErrNotFound", err)
	}
	if _, err := svc.Get(context.Background(), "someone", "admin", "job-1"); err != nil {
		t.Fatalf("admin get: %v", err)
	}
	if _, err := svc.Get(context.Background(), "owner", "user", "job-1"); err != nil {
		t.Fatalf("owner get: %v", err)
	}
}

func TestGetResultOnlyWhenSucceeded(t *testing.T) {
	eng := &scriptedEngine{}
	svc, repo := newTestService(eng, &fakeStore{})
	defer svc.Tracker.Close()

	repo.Create(context.Background(), pendingJob("job-1", "user-1"))
	if _, err := svc.GetResult(context.Background(), "user-1", "user", "job-1"); err != ErrNotReady {
		t.Fatalf("pending result = %v, want ErrNotReady", err)
	}

	repo.MarkTerminal(context.Background(), "job-1", TerminalUpdate{
		Status:        StatusFailed,
		ErrorCode:     ErrorCodeEngine,
		FailureReason: ReasonEngineError,
	})
	if _, err := svc.GetResult(context.Background(), "user-1", "user", "job-1"); err != ErrNotReady {
		t.Fatalf("failed result = %v, want ErrNotReady", err)
	}

	repo.Create(context.Background(), pendingJob("job-2", "user-1"))
	repo.MarkTerminal(context.Background(), "job-2", TerminalUpdate{
		Status: StatusSucceeded,
		Result: &Result{OverallScore: 0.8},
	})
	result, err := svc.GetResult(context.Background(), "user-1", "user", "job-2")
	if err != nil {
		t.Fatalf("succeeded result: %v", err)
	}
	if result.OverallScore != 0.8 {
		t.Fatalf("score = %v, want 0.8", result.OverallScore)
	}
}
