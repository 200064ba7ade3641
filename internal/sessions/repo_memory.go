package sessions

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryRepo stores users in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu      sync.RWMutex
	byID    map[string]User
	byEmail map[string]string
	byName  map[string]string
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:    make(map[string]User),
		byEmail: make(map[string]string),
		byName:  make(map[string]string),
	}
}

// Create stores the user, failing on duplicate email or username.
func (r *MemoryRepo) Create(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	email := strings.ToLower(user.Email)
	name := strings.ToLower(user.Username)
	if _, ok := r.byEmail[email]; ok {
		return ErrConflict
	}
	if _, ok := r.byName[name]; ok {
		return ErrConflict
	}
	r.byID[user.ID] = user
	r.byEmail[email] = user.ID
	r.byName[name] = user.ID
	return nil
}

// GetByID returns a user by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

// GetByEmail returns a user by email, case-insensitive.
func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return r.byID[id], nil
}

// UpdateLastLogin stamps the user's last login time.
func (r *MemoryRepo) UpdateLastLogin(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[userID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	user.LastLogin = &now
	r.byID[userID] = user
	return nil
}
