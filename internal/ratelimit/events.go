package ratelimit

import (
	"sync"

	"github.com/real-rm/linkup/internal/constants"
	"golang.org/x/time/rate"
)

// EventLimiter is a per-user token bucket on inbound WebSocket events.
// All connections of a user share one bucket.
type EventLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	refs     map[string]int
	rps      rate.Limit
	burst    int
}

// NewEventLimiter allows rps sustained events per second with the given burst.
func NewEventLimiter(rps float64, burst int) *EventLimiter {
	if rps <= 0 {
		rps = constants.DefaultEventRate
	}
	if burst <= 0 {
		burst = constants.DefaultEventBurst
	}
	return &EventLimiter{
		limiters: make(map[string]*rate.Limiter),
		refs:     make(map[string]int),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Acquire registers a connection of the user and returns its shared bucket.
func (el *EventLimiter) Acquire(userID string) *rate.Limiter {
	el.mu.Lock()
	defer el.mu.Unlock()

	l, ok := el.limiters[userID]
	if !ok {
		l = rate.NewLimiter(el.rps, el.burst)
		el.limiters[userID] = l
	}
	el.refs[userID]++
	return l
}

// Release drops the bucket once the user's last connection is gone.
func (el *EventLimiter) Release(userID string) {
	el.mu.Lock()
	defer el.mu.Unlock()

	el.refs[userID]--
	if el.refs[userID] <= 0 {
		delete(el.refs, userID)
		delete(el.limiters, userID)
	}
}

// Allow consumes one token from the user's bucket.
func (el *EventLimiter) Allow(userID string) bool {
	el.mu.Lock()
	l, ok := el.limiters[userID]
	el.mu.Unlock()
	if !ok {
		return true
	}
	return l.Allow()
}

// Tracked returns the number of users with a live bucket.
func (el *EventLimiter) Tracked() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.limiters)
}
