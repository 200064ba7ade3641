package audit

import "context"

// Repo defines persistence for audit entries.
type Repo interface {
	Insert(ctx context.Context, entry Entry) error
	ListRecent(ctx context.Context, limit, offset int) ([]Entry, error)
}
