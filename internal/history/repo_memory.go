package history

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores history entries in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu      sync.RWMutex
	byJobID map[string]Entry
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byJobID: make(map[string]Entry)}
}

// Append stores the entry. Duplicate job IDs are ignored.
func (r *MemoryRepo) Append(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byJobID[entry.JobID]; ok {
		return nil
	}
	r.byJobID[entry.JobID] = entry
	return nil
}

// GetByJobID returns the entry for a job.
func (r *MemoryRepo) GetByJobID(ctx context.Context, jobID string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byJobID[jobID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

// ListByUser returns a user's entries newest-first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Entry, error) {
	return r.list(ctx, func(e Entry) bool { return e.UserID == userID }, limit, offset)
}

// ListAll returns all entries newest-first.
func (r *MemoryRepo) ListAll(ctx context.Context, limit, offset int) ([]Entry, error) {
	return r.list(ctx, func(Entry) bool { return true }, limit, offset)
}

func (r *MemoryRepo) list(ctx context.Context, keep func(Entry) bool, limit, offset int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]Entry, 0, len(r.byJobID))
	for _, e := range r.byJobID {
		if keep(e) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SubmittedAt.After(entries[j].SubmittedAt)
	})
	if offset >= len(entries) {
		return []Entry{}, nil
	}
	entries = entries[offset:]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
