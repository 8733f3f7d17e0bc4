// Package testutil provides shared fakes for package tests: a recording
// connection, a scripted LLM provider and fixture builders.
package testutil

import (
	"context"
	"encoding/json"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/real-rm/golog"
	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/llm"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/stretchr/testify/assert"
)

// RecordingConn is an in-memory connection that decodes every frame it is sent.
type RecordingConn struct {
	id     string
	userID string

	mu        sync.Mutex
	frames    []map[string]interface{}
	closed    bool
	closeCode int
	// FailSends makes SafeSend report a dead connection.
	FailSends bool
}

// NewRecordingConn creates a connection for userID.
func NewRecordingConn(id, userID string) *RecordingConn {
	return &RecordingConn{id: id, userID: userID}
}

func (c *RecordingConn) ID() string     { return c.id }
func (c *RecordingConn) UserID() string { return c.userID }

// SafeSend records the frame unless the connection is closed or failing.
func (c *RecordingConn) SafeSend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.FailSends {
		return false
	}
	var frame map[string]interface{}
	if err := json.Unmarshal(data, &frame); err != nil {
		return false
	}
	c.frames = append(c.frames, frame)
	return true
}

// CloseWithCode marks the connection closed.
func (c *RecordingConn) CloseWithCode(code int, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCode = code
}

// Frames returns a copy of every recorded frame.
func (c *RecordingConn) Frames() []map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]interface{}, len(c.frames))
	copy(out, c.frames)
	return out
}

// FramesOfType returns the recorded frames whose "type" equals t.
func (c *RecordingConn) FramesOfType(t string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, f := range c.Frames() {
		if f["type"] == t {
			out = append(out, f)
		}
	}
	return out
}

// Types lists the recorded frame types in order.
func (c *RecordingConn) Types() []string {
	frames := c.Frames()
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		s, _ := f["type"].(string)
		out = append(out, s)
	}
	return out
}

// Reset drops recorded frames.
func (c *RecordingConn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// Closed reports whether the connection was closed and with which code.
func (c *RecordingConn) Closed() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.closeCode
}

// MockProvider is a scripted llm.Provider that tracks its calls.
type MockProvider struct {
	ProviderName string
	// Chunks are streamed in order, followed by a Done chunk.
	Chunks []string
	// StreamError fails the call before any chunk.
	StreamError error
	// StreamFunc overrides the scripted behavior.
	StreamFunc func(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error)

	mu       sync.Mutex
	calls    int
	requests []llm.Request
}

// Name implements llm.Provider.
func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// Model implements llm.Provider.
func (m *MockProvider) Model() string { return m.Name() + "-model" }

// Stream implements llm.Provider.
func (m *MockProvider) Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	m.mu.Lock()
	m.calls++
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.StreamError != nil {
		return nil, m.StreamError
	}
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}
	ch := make(chan llm.Chunk, len(m.Chunks)+1)
	for _, c := range m.Chunks {
		ch <- llm.Chunk{Content: c}
	}
	ch <- llm.Chunk{Done: true}
	close(ch)
	return ch, nil
}

// Calls returns how many times Stream ran.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns every request received.
func (m *MockProvider) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Member builds a regular user.
func Member(id string) *storage.User {
	return &storage.User{ID: id, Username: id, Role: constants.RoleMember}
}

// Admin builds a staff user.
func Admin(id string) *storage.User {
	return &storage.User{ID: id, Username: id, Role: constants.RoleAdmin}
}

// CreateTestLogger creates a logger for testing that writes to a temporary directory
func CreateTestLogger(t *testing.T) *golog.Logger {
	t.Helper()
	logger, err := golog.InitLog(golog.LogConfig{
		Dir:            t.TempDir(),
		Level:          "error",
		StandardOutput: false,
	})
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

// Eventually polls cond until it holds or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	assert.Eventually(t, cond, timeout, 10*time.Millisecond, msg)
}

// MeasureGoroutines returns the current goroutine count
func MeasureGoroutines() int {
	return runtime.NumGoroutine()
}

// WaitForGoroutines waits for goroutines to stabilize
func WaitForGoroutines() {
	runtime.GC()
	time.Sleep(100 * time.Millisecond)
}

// AssertGoroutineCount fails when the goroutine count grew beyond a small tolerance.
func AssertGoroutineCount(t *testing.T, before, after int, description string) {
	t.Helper()
	tolerance := 5
	t.Logf("Goroutine count (%s): %d -> %d", description, before, after)
	assert.InDelta(t, before, after, float64(tolerance),
		"Goroutine count should not increase significantly")
}
