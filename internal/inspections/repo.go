package inspections

import (
	"context"
	"time"
)

// TerminalUpdate describes a terminal transition to record. Authoritative
// updates come from the engine; local markings (timeout, cancel) are not and
// may be overridden later by an authoritative result (last-writer-wins by
// ReportedAt).
type TerminalUpdate struct {
	Status        Status
	Result        *Result
	ErrorCode     string
	ErrorMessage  string
	FailureReason string
	Seq           int64
	ReportedAt    time.Time
	Authoritative bool
}

// Repo defines persistence operations for inspection jobs. Implementations
// enforce monotonic status transitions: progress never regresses and at most
// one terminal transition is recorded per job.
type Repo interface {
	Create(ctx context.Context, job Job) error
	GetByID(ctx context.Context, jobID string) (Job, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Job, error)
	// UpdateProgress advances a non-terminal status. Regressions and updates
	// to terminal jobs are silently ignored.
	UpdateProgress(ctx context.Context, jobID string, status Status, seq int64) error
	// MarkTerminal records a terminal state. The boolean reports whether this
	// call recorded the first terminal transition; duplicates are no-ops that
	// return the stored job. An authoritative update replaces an earlier local
	// timeout marking without counting as a new transition.
	MarkTerminal(ctx context.Context, jobID string, update TerminalUpdate) (Job, bool, error)
}
