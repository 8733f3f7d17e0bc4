package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRedisAddr = "localhost:6379"

func TestMemoryCooldown_ClaimWithinWindow(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCooldown()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ok, err := c.Claim(ctx, "general", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(29 * time.Second)
	ok, _ = c.Claim(ctx, "general", 30*time.Second)
	assert.False(t, ok)

	ok, _ = c.Claim(ctx, "other", 30*time.Second)
	assert.True(t, ok, "rooms are independent")

	now = now.Add(time.Second)
	ok, _ = c.Claim(ctx, "general", 30*time.Second)
	assert.True(t, ok)
}

func TestMemoryCooldown_Release(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCooldown()
	ok, _ := c.Claim(ctx, "g", time.Minute)
	require.True(t, ok)
	require.NoError(t, c.Release(ctx, "g"))
	ok, _ = c.Claim(ctx, "g", time.Minute)
	assert.True(t, ok)
}

func TestMemoryCooldown_ConcurrentClaimsYieldOne(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("exactly one concurrent claim wins", prop.ForAll(
		func(n int) bool {
			c := NewMemoryCooldown()
			var wins int32
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if ok, _ := c.Claim(context.Background(), "general", time.Minute); ok {
						atomic.AddInt32(&wins, 1)
					}
				}()
			}
			wg.Wait()
			return wins == 1
		},
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}

func setupRedisCooldown(t *testing.T) *RedisCooldown {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}
	t.Cleanup(func() { client.Close() })
	return NewRedisCooldown(client, "linkup:test:cooldown:")
}

func TestRedisCooldown_ClaimOnce(t *testing.T) {
	c := setupRedisCooldown(t)
	ctx := context.Background()
	room := "room-" + time.Now().Format("150405.000000000")
	t.Cleanup(func() { c.Release(ctx, room) })

	ok, err := c.Claim(ctx, room, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Claim(ctx, room, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Release(ctx, room))
	ok, err = c.Claim(ctx, room, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisCooldown_ZeroWindowAlwaysClaims(t *testing.T) {
	c := NewRedisCooldown(nil, "")
	ok, err := c.Claim(context.Background(), "g", 0)
	require.NoError(t, err)
	assert.True(t, ok)
}
