package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker records revoked token IDs so logout invalidates outstanding tokens.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryRevoker keeps revoked token IDs in process memory.
type MemoryRevoker struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

// NewMemoryRevoker constructs a MemoryRevoker.
func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{revoked: make(map[string]time.Time)}
}

// Revoke marks the token ID revoked until its expiry.
func (r *MemoryRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tokenID] = time.Now().UTC().Add(ttl)
	return nil
}

// IsRevoked reports whether the token ID has an unexpired revocation.
func (r *MemoryRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	until, ok := r.revoked[tokenID]
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().UTC().After(until) {
		r.mu.Lock()
		delete(r.revoked, tokenID)
		r.mu.Unlock()
		return false, nil
	}
	return true, nil
}

const redisRevokePrefix = "autoinspect:revoked:"

// RedisRevoker stores revocations in Redis so they survive restarts and
// are shared across instances.
type RedisRevoker struct {
	Client *redis.Client
}

// NewRedisRevoker constructs a RedisRevoker for the given address.
func NewRedisRevoker(addr string) *RedisRevoker {
	return &RedisRevoker{Client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Revoke marks the token ID revoked with the remaining token lifetime as TTL.
func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return r.Client.Set(ctx, redisRevokePrefix+tokenID, "1", ttl).Err()
}

// IsRevoked reports whether the token ID is present in the revocation set.
func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.Client.Exists(ctx, redisRevokePrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
