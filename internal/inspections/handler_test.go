package inspections

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", "user-1")
		c.Set("userRole", "user")
	})
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func multipartBody(t *testing.T, fields map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, data := range fields {
		part, err := writer.CreateFormFile("images", name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestSubmitEndpointAcceptsImages(t *testing.T) {
	eng := &scriptedEngine{}
	svc, _ := newTestService(eng, &fakeStore{})
	defer svc.Tracker.Close()
	r := newTestRouter(svc)

	body, contentType := multipartBody(t, map[string][]byte{
		"a.png": pngImage("a.png").Data,
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inspections", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"status":"pending"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestSubmitEndpointRejectsEmptyForm(t *testing.T) {
	eng := &scriptedEngine{}
	svc, _ := newTestService(eng, &fakeStore{})
	defer svc.Tracker.Close()
	r := newTestRouter(svc)

	body, contentType := multipartBody(t, map[string][]byte{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inspections", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "validation_error") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestGetEndpointHidesForeignJob(t *testing.T) {
	eng := &scriptedEngine{}
	svc, repo := newTestService(eng, &fakeStore{})
	defer svc.Tracker.Close()
	repo.Create(context.Background(), pendingJob("job-x", "someone-else"))
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/inspections/job-x", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestResultEndpointNotReady(t *testing.T) {
	eng := &scriptedEngine{}
	svc, repo := newTestService(eng, &fakeStore{})
	defer svc.Tracker.Close()
	repo.Create(context.Background(), pendingJob("job-1", "user-1"))
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/inspections/job-1/result", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not_ready") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestCancelEndpoint(t *testing.T) {
	eng := &scriptedEngine{}
	svc, repo := newTestService(eng, &fakeStore{})
	defer svc.Tracker.Close()
	job := pendingJob("job-1", "user-1")
	job.SubmittedAt = time.Now().UTC()
	repo.Create(context.Background(), job)
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inspections/job-1/cancel", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	stored, _ := repo.GetByID(context.Background(), "job-1")
	if stored.Status != StatusFailed || stored.FailureReason != ReasonCancelled {
		t.Fatalf("stored = %+v", stored)
	}
}
