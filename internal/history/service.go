package history

import (
	"context"

	"github.com/DedovInside/AutoInspect/internal/inspections"
	"github.com/DedovInside/AutoInspect/internal/shared/telemetry"
)

// Service provides read access to inspection history and records completed
// jobs as they finish.
type Service struct {
	Repo     Repo
	PageSize int
}

func (s *Service) pageSize() int {
	if s.PageSize <= 0 {
		return 20
	}
	return s.PageSize
}

// JobFinished appends a history entry for a job that reached a terminal
// state. Called at most once per job; failures are logged, never surfaced to
// the job's owner.
func (s *Service) JobFinished(ctx context.Context, job inspections.Job) {
	entry := Entry{
		JobID:         job.ID,
		UserID:        job.UserID,
		Status:        string(job.Status),
		FailureReason: job.FailureReason,
		SubmittedAt:   job.SubmittedAt,
		CompletedAt:   job.CompletedAt,
	}
	if job.Result != nil {
		entry.FindingCount = len(job.Result.Findings)
		entry.OverallScore = job.Result.OverallScore
	}
	if err := s.Repo.Append(ctx, entry); err != nil {
		telemetry.Error("history.append_failed", map[string]any{
			"job_id": job.ID,
			"error":  err.Error(),
		})
	}
}

// List returns one page of the caller's own history, newest-first.
func (s *Service) List(ctx context.Context, userID, token string) (Page, error) {
	offset, err := decodeToken(token)
	if err != nil {
		return Page{}, err
	}
	entries, err := s.Repo.ListByUser(ctx, userID, s.pageSize()+1, offset)
	if err != nil {
		return Page{}, err
	}
	return s.page(entries, offset), nil
}

// ListAll returns one page across all users. Admin only; the route guard
// enforces the role.
func (s *Service) ListAll(ctx context.Context, token string) (Page, error) {
	offset, err := decodeToken(token)
	if err != nil {
		return Page{}, err
	}
	entries, err := s.Repo.ListAll(ctx, s.pageSize()+1, offset)
	if err != nil {
		return Page{}, err
	}
	return s.page(entries, offset), nil
}

// Get returns one entry visible to the caller.
func (s *Service) Get(ctx context.Context, userID, role, jobID string) (Entry, error) {
	entry, err := s.Repo.GetByJobID(ctx, jobID)
	if err != nil {
		return Entry{}, err
	}
	if entry.UserID != userID && role != "admin" {
		return Entry{}, ErrForbidden
	}
	return entry, nil
}

func (s *Service) page(entries []Entry, offset int) Page {
	size := s.pageSize()
	page := Page{Entries: entries}
	if len(entries) > size {
		page.Entries = entries[:size]
		page.NextToken = encodeToken(offset + size)
	}
	if page.Entries == nil {
		page.Entries = []Entry{}
	}
	return page
}
