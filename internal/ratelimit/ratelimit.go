// Package ratelimit guards the router against floods: per-user connection caps,
// sliding-window HTTP limits, token-bucket limits on inbound events, and the
// per-room AI cooldown.
package ratelimit

import (
	"sync"
	"time"

	"github.com/real-rm/golog"
	"github.com/real-rm/linkup/internal/constants"
)

// ConnectionLimiter limits the number of concurrent connections per user
type ConnectionLimiter struct {
	connections map[string]int // userID -> connection count
	maxPerUser  int
	mu          sync.Mutex
}

// NewConnectionLimiter creates a new connection limiter
func NewConnectionLimiter(maxPerUser int) *ConnectionLimiter {
	if maxPerUser <= 0 {
		maxPerUser = constants.DefaultMaxConnections
	}
	return &ConnectionLimiter{
		connections: make(map[string]int),
		maxPerUser:  maxPerUser,
	}
}

// Allow reserves a connection slot for the user.
func (cl *ConnectionLimiter) Allow(userID string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	count := cl.connections[userID]
	if count >= cl.maxPerUser {
		return false
	}
	cl.connections[userID] = count + 1
	return true
}

// Release frees a slot reserved by Allow.
func (cl *ConnectionLimiter) Release(userID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	count, ok := cl.connections[userID]
	if !ok {
		return
	}
	if count <= 1 {
		delete(cl.connections, userID)
		return
	}
	cl.connections[userID] = count - 1
}

// Count returns the current connection count for a user
func (cl *ConnectionLimiter) Count(userID string) int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.connections[userID]
}

// WindowLimiter is a sliding-window limiter keyed by caller, used on the HTTP surface.
type WindowLimiter struct {
	events map[string][]time.Time
	window time.Duration
	limit  int
	logger *golog.Logger
	mu     sync.Mutex

	cleanupInterval time.Duration
	stopOnce        sync.Once
	stopCleanup     chan struct{}
	cleanupWg       sync.WaitGroup
}

// NewWindowLimiter allows limit events per key within window.
// logger may be nil.
func NewWindowLimiter(window time.Duration, limit int, logger *golog.Logger) *WindowLimiter {
	return &WindowLimiter{
		events:          make(map[string][]time.Time),
		window:          window,
		limit:           limit,
		logger:          logger,
		cleanupInterval: constants.DefaultCleanupInterval,
		stopCleanup:     make(chan struct{}),
	}
}

// Allow records an event for key and reports whether it fits the window.
// When it does not, retryAfter is the wait in milliseconds.
func (wl *WindowLimiter) Allow(key string) (ok bool, retryAfter int) {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	now := time.Now()
	recent := pruneBefore(wl.events[key], now.Add(-wl.window))

	if len(recent) >= wl.limit {
		wl.events[key] = recent
		wait := recent[0].Add(wl.window).Sub(now)
		if wait < 0 {
			wait = 0
		}
		return false, int(wait.Milliseconds())
	}

	// No else needed: optional operation (bound the map under key churn)
	if _, tracked := wl.events[key]; !tracked && len(wl.events) >= constants.MaxUsersTracked {
		return false, int(wl.window.Milliseconds())
	}

	if len(recent) >= constants.MaxEventsPerUser {
		recent = recent[1:]
	}
	wl.events[key] = append(recent, now)
	return true, 0
}

// Reset clears the history for key.
func (wl *WindowLimiter) Reset(key string) {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	delete(wl.events, key)
}

// Cleanup drops expired events and returns how many were removed.
func (wl *WindowLimiter) Cleanup() int {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	cutoff := time.Now().Add(-wl.window)
	removed := 0
	for key, events := range wl.events {
		recent := pruneBefore(events, cutoff)
		removed += len(events) - len(recent)
		if len(recent) == 0 {
			delete(wl.events, key)
			continue
		}
		wl.events[key] = recent
	}
	return removed
}

// StartCleanup runs Cleanup periodically until StopCleanup.
func (wl *WindowLimiter) StartCleanup() {
	wl.cleanupWg.Add(1)
	go func() {
		defer wl.cleanupWg.Done()
		ticker := time.NewTicker(wl.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				removed := wl.Cleanup()
				if removed > 0 && wl.logger != nil {
					wl.logger.Debug("Rate limiter cleanup", "removed_events", removed)
				}
			case <-wl.stopCleanup:
				return
			}
		}
	}()
}

// StopCleanup stops the cleanup goroutine and waits for it. Safe to call twice.
func (wl *WindowLimiter) StopCleanup() {
	wl.stopOnce.Do(func() { close(wl.stopCleanup) })
	wl.cleanupWg.Wait()
}

// pruneBefore returns the suffix of the ordered events newer than cutoff.
func pruneBefore(events []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(events) && !events[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return events
	}
	return append([]time.Time(nil), events[i:]...)
}
