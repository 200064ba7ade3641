package inspections

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores inspection jobs in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu     sync.RWMutex
	byID   map[string]Job
	byUser map[string][]string
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:   make(map[string]Job),
		byUser: make(map[string][]string),
	}
}

// Create stores the job.
func (r *MemoryRepo) Create(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[job.ID] = job
	r.byUser[job.UserID] = append(r.byUser[job.UserID], job.ID)
	return nil
}

// GetByID returns a job by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.byID[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// ListByUser returns a user's jobs ordered newest-first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byUser[userID]
	jobs := make([]Job, 0, len(ids))
	for _, id := range ids {
		jobs = append(jobs, r.byID[id])
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].SubmittedAt.After(jobs[j].SubmittedAt)
	})
	if offset >= len(jobs) {
		return []Job{}, nil
	}
	jobs = jobs[offset:]
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// UpdateProgress advances a non-terminal status, ignoring regressions.
func (r *MemoryRepo) UpdateProgress(ctx context.Context, jobID string, status Status, seq int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Status.Terminal() || status.Rank() <= job.Status.Rank() || seq < job.StatusSeq {
		return nil
	}
	now := time.Now().UTC()
	job.Status = status
	job.StatusSeq = seq
	job.UpdatedAt = &now
	r.byID[jobID] = job
	return nil
}

// MarkTerminal records a terminal state with at-most-one transition semantics.
func (r *MemoryRepo) MarkTerminal(ctx context.Context, jobID string, update TerminalUpdate) (Job, bool, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return Job{}, false, ErrNotFound
	}

	if job.Status.Terminal() {
		// Authoritative engine results override an earlier local timeout
		// marking, last-writer-wins by report time. Anything else is a no-op.
		overridable := job.FailureReason == ReasonAnalysisTimeout
		if update.Authoritative && overridable && (job.CompletedAt == nil || update.ReportedAt.After(*job.CompletedAt)) {
			job = applyTerminal(job, update)
			r.byID[jobID] = job
		}
		return job, false, nil
	}

	job = applyTerminal(job, update)
	r.byID[jobID] = job
	return job, true, nil
}

func applyTerminal(job Job, update TerminalUpdate) Job {
	completedAt := update.ReportedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}
	job.Status = update.Status
	job.StatusSeq = update.Seq
	job.FailureReason = update.FailureReason
	job.CompletedAt = &completedAt
	job.UpdatedAt = &completedAt
	if update.Status == StatusSucceeded {
		job.Result = update.Result
		job.ErrorCode = ""
		job.ErrorMessage = ""
	} else {
		job.Result = nil
		job.ErrorCode = update.ErrorCode
		job.ErrorMessage = update.ErrorMessage
	}
	return job
}
