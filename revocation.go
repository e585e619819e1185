package authcore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList records token IDs invalidated before their natural expiry
// (logout). Membership is checked on every access-token verification.
type RevocationList interface {
	// Revoke marks jti as invalid until expiresAt. Revoking an already
	// revoked or already expired token is a no-op.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error

	// IsRevoked reports whether jti has been revoked and not yet evicted.
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryRevocationList is a bounded in-process RevocationList.
//
// The set grows until an insertion pushes it past the high-water mark, then
// it is truncated to the most recent low-water entries in insertion order.
// Evicted entries are treated as no longer revoked even if their tokens have
// not expired, so the list is deliberately approximate: under sustained
// logout volume a revoked access token may be honored again for the rest of
// its (short) lifetime. The bound is the point; an unbounded set is a memory
// leak driven by user behavior.
type MemoryRevocationList struct {
	mu        sync.Mutex
	entries   map[string]struct{}
	order     []string
	highWater int
	lowWater  int
	onEvict   func(n int)
}

// NewMemoryRevocationList builds a list with the given water marks.
// Arguments that do not satisfy 0 < low < high fall back to the defaults.
func NewMemoryRevocationList(highWater, lowWater int) *MemoryRevocationList {
	if lowWater < 1 || highWater <= lowWater {
		d := DefaultConfig().Revocation
		highWater, lowWater = d.HighWater, d.LowWater
	}
	return &MemoryRevocationList{
		entries:   make(map[string]struct{}),
		highWater: highWater,
		lowWater:  lowWater,
	}
}

// SetEvictionHook registers a callback invoked (under the list lock) with
// the number of entries dropped by each truncation. Used for metrics.
func (l *MemoryRevocationList) SetEvictionHook(fn func(n int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onEvict = fn
}

func (l *MemoryRevocationList) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	if jti == "" || !time.Now().Before(expiresAt) {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[jti]; ok {
		return nil
	}
	l.entries[jti] = struct{}{}
	l.order = append(l.order, jti)

	if len(l.entries) > l.highWater {
		l.truncateLocked()
	}
	return nil
}

func (l *MemoryRevocationList) IsRevoked(_ context.Context, jti string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[jti]
	return ok, nil
}

// Len returns the current number of revoked entries.
func (l *MemoryRevocationList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// truncateLocked drops the oldest entries until lowWater remain. Insertion
// order approximates expiry order because token lifetimes are uniform.
func (l *MemoryRevocationList) truncateLocked() {
	drop := len(l.order) - l.lowWater
	if drop <= 0 {
		return
	}
	for _, jti := range l.order[:drop] {
		delete(l.entries, jti)
	}
	l.order = append(l.order[:0], l.order[drop:]...)
	if l.onEvict != nil {
		l.onEvict(drop)
	}
}

// RedisRevocationList stores revoked token IDs in redis with a TTL matching
// the token's remaining lifetime, so entries expire exactly when the token
// does. Suitable when multiple instances must share logout state.
type RedisRevocationList struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedisRevocationList(client redis.UniversalClient, keyPrefix string) *RedisRevocationList {
	if keyPrefix == "" {
		keyPrefix = "revoked"
	}
	return &RedisRevocationList{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (l *RedisRevocationList) key(jti string) string {
	return l.keyPrefix + ":" + jti
}

func (l *RedisRevocationList) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if jti == "" || ttl <= 0 {
		return nil
	}
	if err := l.client.Set(ctx, l.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revocation store: %w", err)
	}
	return nil
}

func (l *RedisRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("revocation store: %w", err)
	}
	return n > 0, nil
}
