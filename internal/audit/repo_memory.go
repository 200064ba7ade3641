package audit

import (
	"context"
	"sync"
)

// MemoryRepo stores audit entries in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu      sync.RWMutex
	entries []Entry
	nextID  int64
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{nextID: 1}
}

// Insert appends the entry.
func (r *MemoryRepo) Insert(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = r.nextID
	r.nextID++
	r.entries = append(r.entries, entry)
	return nil
}

// ListRecent returns entries newest-first.
func (r *MemoryRepo) ListRecent(ctx context.Context, limit, offset int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	out := make([]Entry, 0, limit)
	for i := len(r.entries) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.entries[i])
	}
	return out, nil
}
