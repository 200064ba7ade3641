package audit

import (
	"context"
	"time"

	"github.com/DedovInside/AutoInspect/internal/inspections"
	"github.com/DedovInside/AutoInspect/internal/shared/telemetry"
)

// Recorder appends audit entries. Recording is best-effort: a failed insert
// is logged and never propagated to the caller's request.
type Recorder struct {
	Repo Repo
}

// NewRecorder constructs a Recorder.
func NewRecorder(repo Repo) *Recorder {
	return &Recorder{Repo: repo}
}

// Record appends one audit entry.
func (r *Recorder) Record(ctx context.Context, action, userID string, details map[string]any) {
	entry := Entry{
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
	if id, ok := details["jobId"].(string); ok {
		entry.EntityType = "inspection"
		entry.EntityID = id
	}
	if err := r.Repo.Insert(ctx, entry); err != nil {
		telemetry.Error("audit.insert_failed", map[string]any{
			"action": action,
			"error":  err.Error(),
		})
	}
}

// JobFinished records the terminal outcome of an inspection job.
func (r *Recorder) JobFinished(ctx context.Context, job inspections.Job) {
	details := map[string]any{
		"jobId":  job.ID,
		"status": string(job.Status),
	}
	if job.FailureReason != "" {
		details["failureReason"] = job.FailureReason
	}
	r.Record(ctx, ActionInspectionFinished, job.UserID, details)
}

// ListRecent returns recent entries for the admin view.
func (r *Recorder) ListRecent(ctx context.Context, limit, offset int) ([]Entry, error) {
	return r.Repo.ListRecent(ctx, limit, offset)
}
