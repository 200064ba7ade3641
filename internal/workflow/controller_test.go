package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/DedovInside/AutoInspect/internal/inspections"
)

func mustApply(t *testing.T, c *Controller, userID, role string, event Event, jobID string) View {
	t.Helper()
	view, err := c.Apply(userID, role, event, jobID)
	if err != nil {
		t.Fatalf("apply %s: %v", event, err)
	}
	return view
}

func TestHappyPathUploadToResult(t *testing.T) {
	c := NewController()

	mustApply(t, c, "u1", "user", EventLogin, "")
	mustApply(t, c, "u1", "user", EventStartUpload, "")
	view := mustApply(t, c, "u1", "user", EventSubmitted, "job-1")
	if view.State != StateAwaitingAnalysis || view.JobID != "job-1" {
		t.Fatalf("view = %+v", view)
	}

	view = mustApply(t, c, "u1", "user", EventViewResult, "")
	if view.State != StateResultReady || view.JobID != "job-1" {
		t.Fatalf("view = %+v", view)
	}
}

func TestSubmittedRequiresUploading(t *testing.T) {
	c := NewController()
	mustApply(t, c, "u1", "user", EventLogin, "")

	_, err := c.Apply("u1", "user", EventSubmitted, "job-1")
	var iterr *InvalidTransitionError
	if !errors.As(err, &iterr) {
		t.Fatalf("err = %v, want InvalidTransitionError", err)
	}
	if iterr.From != StateIdle {
		t.Fatalf("from = %v, want idle", iterr.From)
	}
}

func TestNavigatingAwayKeepsJobAndResumes(t *testing.T) {
	c := NewController()
	mustApply(t, c, "u1", "user", EventLogin, "")
	mustApply(t, c, "u1", "user", EventStartUpload, "")
	mustApply(t, c, "u1", "user", EventSubmitted, "job-1")

	// Browsing history while the job is still running.
	view := mustApply(t, c, "u1", "user", EventOpenHistory, "")
	if view.State != StateBrowsingHistory {
		t.Fatalf("view = %+v", view)
	}

	view = mustApply(t, c, "u1", "user", EventResume, "job-1")
	if view.State != StateAwaitingAnalysis || view.JobID != "job-1" {
		t.Fatalf("view = %+v", view)
	}
}

func TestJobFinishedFlipsWaitingUser(t *testing.T) {
	c := NewController()
	mustApply(t, c, "u1", "user", EventLogin, "")
	mustApply(t, c, "u1", "user", EventStartUpload, "")
	mustApply(t, c, "u1", "user", EventSubmitted, "job-1")

	c.JobFinished(context.Background(), inspections.Job{ID: "job-1", UserID: "u1", Status: inspections.StatusSucceeded})

	view := c.Current("u1")
	if view.State != StateResultReady || view.JobID != "job-1" {
		t.Fatalf("view = %+v", view)
	}
}

func TestJobFinishedLeavesOtherScreensAlone(t *testing.T) {
	c := NewController()
	mustApply(t, c, "u1", "user", EventLogin, "")
	mustApply(t, c, "u1", "user", EventStartUpload, "")
	mustApply(t, c, "u1", "user", EventSubmitted, "job-1")
	mustApply(t, c, "u1", "user", EventOpenHistory, "")

	c.JobFinished(context.Background(), inspections.Job{ID: "job-1", UserID: "u1", Status: inspections.StatusSucceeded})

	if view := c.Current("u1"); view.State != StateBrowsingHistory {
		t.Fatalf("view = %+v", view)
	}
}

func TestAdminViewRequiresAdminRole(t *testing.T) {
	c := NewController()
	mustApply(t, c, "u1", "user", EventLogin, "")
	if _, err := c.Apply("u1", "user", EventOpenAdmin, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	mustApply(t, c, "a1", "admin", EventLogin, "")
	view := mustApply(t, c, "a1", "admin", EventOpenAdmin, "")
	if view.State != StateAdminView {
		t.Fatalf("view = %+v", view)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	c := NewController()
	mustApply(t, c, "u1", "user", EventLogin, "")
	mustApply(t, c, "u1", "user", EventStartUpload, "")

	if view := c.Current("u2"); view.State != StateIdle {
		t.Fatalf("u2 view = %+v", view)
	}
}

func TestLogoutResetsState(t *testing.T) {
	c := NewController()
	mustApply(t, c, "u1", "user", EventLogin, "")
	mustApply(t, c, "u1", "user", EventStartUpload, "")
	view := mustApply(t, c, "u1", "user", EventLogout, "")
	if view.State != StateUnauthenticated || view.JobID != "" {
		t.Fatalf("view = %+v", view)
	}
}

func TestUnknownEvent(t *testing.T) {
	c := NewController()
	if _, err := c.Apply("u1", "user", Event("teleport"), ""); !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("err = %v, want ErrUnknownEvent", err)
	}
}
