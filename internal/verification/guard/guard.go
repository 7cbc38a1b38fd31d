// Package guard serializes verification submissions per user. The guard is
// externalized in Redis, not process memory, so the "one submission in
// flight" rule holds across service instances. Acquisition is a single
// conditional write (SET NX PX); there is no read-then-write window.
package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard is the per-user in-flight submission lock.
type Guard interface {
	// Acquire returns false when another submission is already in flight
	// for the user.
	Acquire(ctx context.Context, userID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, userID string) error
}

const keyPrefix = "kyc:inflight:"

// RedisGuard implements Guard on Redis.
type RedisGuard struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed guard.
func NewRedis(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

func (g *RedisGuard) Acquire(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, keyPrefix+userID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire in-flight guard: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, userID string) error {
	if err := g.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("release in-flight guard: %w", err)
	}
	return nil
}

// MemoryGuard is the in-process implementation for unit tests.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]time.Time
}

// NewMemory creates an in-memory guard.
func NewMemory() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]time.Time)}
}

func (g *MemoryGuard) Acquire(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if deadline, ok := g.held[userID]; ok && time.Now().Before(deadline) {
		return false, nil
	}
	g.held[userID] = time.Now().Add(ttl)
	return true, nil
}

func (g *MemoryGuard) Release(ctx context.Context, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, userID)
	return nil
}
