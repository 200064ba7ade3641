package history

import "context"

// Repo defines persistence operations for history entries. Append is
// idempotent per job ID; a second append for the same job is a no-op.
type Repo interface {
	Append(ctx context.Context, entry Entry) error
	GetByJobID(ctx context.Context, jobID string) (Entry, error)
	// ListByUser returns up to limit+1 entries so callers can detect a next page.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Entry, error)
	ListAll(ctx context.Context, limit, offset int) ([]Entry, error)
}
