package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/real-rm/linkup/internal/constants"
	"github.com/redis/go-redis/v9"
)

// Cooldown spaces out assistant replies per room. Claim is atomic: of two
// concurrent claims inside one window exactly one succeeds.
type Cooldown interface {
	Claim(ctx context.Context, roomID string, window time.Duration) (bool, error)
	Release(ctx context.Context, roomID string) error
}

// MemoryCooldown keeps the last claim time per room in process.
type MemoryCooldown struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

// NewMemoryCooldown returns an empty in-process cooldown.
func NewMemoryCooldown() *MemoryCooldown {
	return &MemoryCooldown{last: make(map[string]time.Time), now: time.Now}
}

// Claim succeeds when the room has not been claimed within window.
func (c *MemoryCooldown) Claim(_ context.Context, roomID string, window time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.last[roomID]; ok && now.Sub(last) < window {
		return false, nil
	}
	c.last[roomID] = now
	c.sweep(now, window)
	return true, nil
}

// Release forgets the room's last claim.
func (c *MemoryCooldown) Release(_ context.Context, roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.last, roomID)
	return nil
}

// sweep drops entries far outside any plausible window once the map grows.
func (c *MemoryCooldown) sweep(now time.Time, window time.Duration) {
	if len(c.last) < 1024 {
		return
	}
	horizon := 10 * window
	if horizon < time.Hour {
		horizon = time.Hour
	}
	for room, t := range c.last {
		if now.Sub(t) > horizon {
			delete(c.last, room)
		}
	}
}

// RedisCooldown shares the cooldown across processes with SET NX PX.
type RedisCooldown struct {
	client *redis.Client
	prefix string
}

// NewRedisCooldown stores keys as <prefix><roomID>.
func NewRedisCooldown(client *redis.Client, prefix string) *RedisCooldown {
	if prefix == "" {
		prefix = constants.DefaultRedisPrefix
	}
	return &RedisCooldown{client: client, prefix: prefix}
}

// Claim sets the room key only if absent, expiring after window.
func (c *RedisCooldown) Claim(ctx context.Context, roomID string, window time.Duration) (bool, error) {
	// A zero expiry would make the key permanent.
	if window <= 0 {
		return true, nil
	}
	ok, err := c.client.SetNX(ctx, c.prefix+roomID, time.Now().UnixMilli(), window).Result()
	if err != nil {
		return false, fmt.Errorf("cooldown claim error: %w", err)
	}
	return ok, nil
}

// Release deletes the room key.
func (c *RedisCooldown) Release(ctx context.Context, roomID string) error {
	if err := c.client.Del(ctx, c.prefix+roomID).Err(); err != nil {
		return fmt.Errorf("cooldown release error: %w", err)
	}
	return nil
}
