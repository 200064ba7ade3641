package inspections

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DedovInside/AutoInspect/internal/engine"
)

type statusReply struct {
	snap engine.StatusSnapshot
	err  error
}

// scriptedEngine pops one reply per GetStatus call; the last reply repeats.
type scriptedEngine struct {
	mu      sync.Mutex
	replies []statusReply
	cancels int
}

func (e *scriptedEngine) Submit(ctx context.Context, req engine.SubmitRequest) (string, error) {
	return "job-1", nil
}

func (e *scriptedEngine) GetStatus(ctx context.Context, jobID string) (engine.StatusSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.replies) == 0 {
		return engine.StatusSnapshot{}, engine.ErrTransport
	}
	reply := e.replies[0]
	if len(e.replies) > 1 {
		e.replies = e.replies[1:]
	}
	return reply.snap, reply.err
}

func (e *scriptedEngine) Cancel(ctx context.Context, jobID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancels++
	return nil
}

func (e *scriptedEngine) cancelCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancels
}

func (e *scriptedEngine) setReplies(replies []statusReply) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replies = replies
}

type captureSink struct {
	mu   sync.Mutex
	jobs []Job
}

func (s *captureSink) JobFinished(ctx context.Context, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

func (s *captureSink) finished() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

func newTestTracker(eng engine.Client, repo Repo, sink TerminalSink) *Tracker {
	tr := NewTracker(eng, repo, PollConfig{
		Interval:      time.Millisecond,
		BackoffFactor: 1.0,
		RetryCeiling:  2,
	})
	tr.Sink = sink
	return tr
}

func pendingJob(id, userID string) Job {
	return Job{
		ID:          id,
		UserID:      userID,
		Status:      StatusPending,
		ImageKeys:   []string{"k1"},
		SubmittedAt: time.Now().UTC(),
	}
}

func collect(t *testing.T, sub *Subscription) []Snapshot {
	t.Helper()
	var out []Snapshot
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-sub.Updates():
			if !ok {
				return out
			}
			out = append(out, snap)
		case <-deadline:
			t.Fatalf("timed out waiting for snapshots, got %d so far", len(out))
		}
	}
}

func engineSnap(status string, seq int64) engine.StatusSnapshot {
	return engine.StatusSnapshot{
		JobID:      "job-1",
		Status:     status,
		Seq:        seq,
		ReportedAt: time.Now().UTC(),
	}
}

func TestTrackerDeliversMonotonicSnapshots(t *testing.T) {
	succeeded := engineSnap(engine.StatusSucceeded, 3)
	succeeded.Result = &engine.ResultPayload{
		Findings:     []engine.Finding{{Region: "front-left door", Severity: "moderate", Label: "dent", Confidence: 0.91}},
		OverallScore: 0.72,
	}
	eng := &scriptedEngine{replies: []statusReply{
		{snap: engineSnap(engine.StatusPending, 1)},
		{snap: engineSnap(engine.StatusAnalyzing, 2)},
		{snap: succeeded},
	}}
	repo := NewMemoryRepo()
	sink := &captureSink{}
	tracker := newTestTracker(eng, repo, sink)
	defer tracker.Close()

	job := pendingJob("job-1", "user-1")
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("create: %v", err)
	}
	tracker.Track(job)

	sub, err := tracker.Watch(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	snaps := collect(t, sub)

	if len(snaps) == 0 {
		t.Fatal("expected at least one snapshot")
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i].Status.Rank() < snaps[i-1].Status.Rank() {
			t.Fatalf("rank regressed: %v after %v", snaps[i].Status, snaps[i-1].Status)
		}
	}
	final := snaps[len(snaps)-1]
	if final.Status != StatusSucceeded {
		t.Fatalf("final status = %v, want succeeded", final.Status)
	}
	if final.Result == nil || len(final.Result.Findings) != 1 {
		t.Fatalf("final result = %+v, want one finding", final.Result)
	}

	stored, err := repo.GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != StatusSucceeded || stored.Result == nil || stored.CompletedAt == nil {
		t.Fatalf("stored job not terminal-succeeded: %+v", stored)
	}

	if got := len(sink.finished()); got != 1 {
		t.Fatalf("sink called %d times, want 1", got)
	}
}

func TestTrackerDiscardsStaleReplies(t *testing.T) {
	eng := &scriptedEngine{replies: []statusReply{
		{snap: engineSnap(engine.StatusAnalyzing, 5)},
		{snap: engineSnap(engine.StatusPending, 3)},
		{snap: engineSnap(engine.StatusSucceeded, 6)},
	}}
	repo := NewMemoryRepo()
	tracker := newTestTracker(eng, repo, &captureSink{})
	defer tracker.Close()

	job := pendingJob("job-1", "user-1")
	repo.Create(context.Background(), job)
	tracker.Track(job)

	sub, err := tracker.Watch(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	snaps := collect(t, sub)

	for _, snap := range snaps {
		if snap.Status == StatusPending && snap.Seq == 3 {
			t.Fatal("stale pending reply was delivered")
		}
	}
	if snaps[len(snaps)-1].Status != StatusSucceeded {
		t.Fatalf("final status = %v, want succeeded", snaps[len(snaps)-1].Status)
	}
}

func TestTrackerTimesOutAfterRetryCeiling(t *testing.T) {
	eng := &scriptedEngine{replies: []statusReply{{err: engine.ErrTransport}}}
	repo := NewMemoryRepo()
	sink := &captureSink{}
	tracker := newTestTracker(eng, repo, sink)
	defer tracker.Close()

	job := pendingJob("job-1", "user-1")
	repo.Create(context.Background(), job)
	tracker.Track(job)

	sub, err := tracker.Watch(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	snaps := collect(t, sub)

	final := snaps[len(snaps)-1]
	if final.Status != StatusFailed || final.FailureReason != ReasonAnalysisTimeout {
		t.Fatalf("final = %+v, want failed/analysis_timeout", final)
	}

	stored, _ := repo.GetByID(context.Background(), "job-1")
	if stored.ErrorCode != ErrorCodeAnalysisTimeout {
		t.Fatalf("error code = %q, want %q", stored.ErrorCode, ErrorCodeAnalysisTimeout)
	}
	if got := len(sink.finished()); got != 1 {
		t.Fatalf("sink called %d times, want exactly 1", got)
	}
}

func TestTrackerUnknownJobFailsAsEngineError(t *testing.T) {
	eng := &scriptedEngine{replies: []statusReply{{err: engine.ErrUnknownJob}}}
	repo := NewMemoryRepo()
	tracker := newTestTracker(eng, repo, &captureSink{})
	defer tracker.Close()

	job := pendingJob("job-1", "user-1")
	repo.Create(context.Background(), job)
	tracker.Track(job)

	sub, err := tracker.Watch(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	snaps := collect(t, sub)
	final := snaps[len(snaps)-1]
	if final.Status != StatusFailed || final.FailureReason != ReasonEngineError {
		t.Fatalf("final = %+v, want failed/engine_error", final)
	}
}

func TestTrackerRewatchAfterTerminalYieldsClosedStream(t *testing.T) {
	eng := &scriptedEngine{replies: []statusReply{
		{snap: engineSnap(engine.StatusSucceeded, 2)},
	}}
	repo := NewMemoryRepo()
	tracker := newTestTracker(eng, repo, &captureSink{})
	defer tracker.Close()

	job := pendingJob("job-1", "user-1")
	repo.Create(context.Background(), job)
	tracker.Track(job)

	first, err := tracker.Watch(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	collect(t, first)

	// Navigating away and back: the terminal snapshot is available at once.
	second, err := tracker.Watch(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("rewatch: %v", err)
	}
	snaps := collect(t, second)
	if len(snaps) != 1 || snaps[0].Status != StatusSucceeded {
		t.Fatalf("rewatch snapshots = %+v, want single succeeded", snaps)
	}
}

func TestTrackerAuthoritativeResultOverridesTimeout(t *testing.T) {
	repo := NewMemoryRepo()
	job := pendingJob("job-1", "user-1")
	repo.Create(context.Background(), job)
	earlier := time.Now().UTC().Add(-time.Minute)
	if _, _, err := repo.MarkTerminal(context.Background(), "job-1", TerminalUpdate{
		Status:        StatusFailed,
		ErrorCode:     ErrorCodeAnalysisTimeout,
		ErrorMessage:  "analysis engine unresponsive",
		FailureReason: ReasonAnalysisTimeout,
		ReportedAt:    earlier,
	}); err != nil {
		t.Fatalf("mark terminal: %v", err)
	}

	succeeded := engineSnap(engine.StatusSucceeded, 7)
	succeeded.Result = &engine.ResultPayload{OverallScore: 0.5}
	eng := &scriptedEngine{replies: []statusReply{{snap: succeeded}}}
	sink := &captureSink{}
	tracker := newTestTracker(eng, repo, sink)
	defer tracker.Close()

	sub, err := tracker.Watch(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	snaps := collect(t, sub)
	if len(snaps) != 1 || snaps[0].Status != StatusSucceeded {
		t.Fatalf("snapshots = %+v, want single succeeded", snaps)
	}

	stored, _ := repo.GetByID(context.Background(), "job-1")
	if stored.Status != StatusSucceeded || stored.Result == nil {
		t.Fatalf("stored job = %+v, want succeeded with result", stored)
	}
	if stored.FailureReason != "" || stored.ErrorCode != "" {
		t.Fatalf("stale failure fields survived override: %+v", stored)
	}
	// The job already went through a terminal transition; no second sink call.
	if got := len(sink.finished()); got != 0 {
		t.Fatalf("sink called %d times, want 0", got)
	}
}

func TestTrackerCancelMarksFailedOnce(t *testing.T) {
	eng := &scriptedEngine{replies: []statusReply{{snap: engineSnap(engine.StatusAnalyzing, 1)}}}
	repo := NewMemoryRepo()
	sink := &captureSink{}
	tracker := newTestTracker(eng, repo, sink)
	defer tracker.Close()

	job := pendingJob("job-1", "user-1")
	repo.Create(context.Background(), job)
	tracker.Track(job)

	if err := tracker.Cancel(context.Background(), "job-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	stored, _ := repo.GetByID(context.Background(), "job-1")
	if stored.Status != StatusFailed || stored.FailureReason != ReasonCancelled {
		t.Fatalf("stored job = %+v, want failed/cancelled", stored)
	}
	if got := eng.cancelCount(); got != 1 {
		t.Fatalf("engine cancel called %d times, want 1", got)
	}

	// Double-cancel is a safe no-op.
	if err := tracker.Cancel(context.Background(), "job-1"); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if got := eng.cancelCount(); got != 1 {
		t.Fatalf("engine cancel called %d times after double-cancel, want 1", got)
	}
	if got := len(sink.finished()); got != 1 {
		t.Fatalf("sink called %d times, want 1", got)
	}
}

func TestTrackerCancelUnknownJob(t *testing.T) {
	tracker := newTestTracker(&scriptedEngine{}, NewMemoryRepo(), &captureSink{})
	defer tracker.Close()
	if err := tracker.Cancel(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("cancel unknown = %v, want ErrNotFound", err)
	}
}

func TestTrackerWatchUnknownJob(t *testing.T) {
	tracker := newTestTracker(&scriptedEngine{}, NewMemoryRepo(), &captureSink{})
	defer tracker.Close()
	if _, err := tracker.Watch(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("watch unknown = %v, want ErrNotFound", err)
	}
}
