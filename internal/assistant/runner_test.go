package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/support"
	"github.com/real-rm/linkup/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu   sync.Mutex
	jobs []Job
	fn   func(ctx context.Context, job Job) error
}

func (h *recordingHandler) Run(ctx context.Context, job Job) error {
	h.mu.Lock()
	h.jobs = append(h.jobs, job)
	h.mu.Unlock()
	if h.fn != nil {
		return h.fn(ctx, job)
	}
	return nil
}

func (h *recordingHandler) Jobs() []Job {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Job(nil), h.jobs...)
}

func shutdown(t *testing.T, r *Runner) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))
}

func TestRunner_QueueFull(t *testing.T) {
	logger := testutil.CreateTestLogger(t)
	// Not started: nothing drains the queue.
	r := NewRunner(&recordingHandler{}, 1, 1, logger)

	require.NoError(t, r.Submit(context.Background(), Job{RoomID: "general"}))
	err := r.Submit(context.Background(), Job{RoomID: "general"})
	assert.ErrorIs(t, err, ErrQueueFull)

	shutdown(t, r)
}

func TestRunner_SubmitAfterShutdown(t *testing.T) {
	logger := testutil.CreateTestLogger(t)
	r := NewRunner(&recordingHandler{}, 1, 4, logger)
	r.Start()
	shutdown(t, r)

	assert.ErrorIs(t, r.Submit(context.Background(), Job{}), ErrRunnerClosed)
	// Shutdown is idempotent.
	assert.NoError(t, r.Shutdown(context.Background()))
}

func TestRunner_RunsQueuedJobsBeforeShutdownReturns(t *testing.T) {
	logger := testutil.CreateTestLogger(t)
	h := &recordingHandler{}
	r := NewRunner(h, 2, 8, logger)
	r.Start()

	for i := 0; i < 5; i++ {
		require.NoError(t, r.Submit(context.Background(), Job{RoomID: "general"}))
	}
	shutdown(t, r)

	jobs := h.Jobs()
	require.Len(t, jobs, 5)
	ids := make(map[string]bool)
	for _, j := range jobs {
		assert.NotEmpty(t, j.MessageID, "missing message ids are assigned on submit")
		ids[j.MessageID] = true
	}
	assert.Len(t, ids, 5)
}

func TestRunner_JobOutlivesSubmitterContext(t *testing.T) {
	logger := testutil.CreateTestLogger(t)
	release := make(chan struct{})
	var jobErr error
	h := &recordingHandler{fn: func(ctx context.Context, job Job) error {
		<-release
		jobErr = ctx.Err()
		return nil
	}}
	r := NewRunner(h, 1, 1, logger)
	r.Start()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Submit(ctx, Job{RoomID: "general"}))
	cancel()
	close(release)
	shutdown(t, r)

	assert.NoError(t, jobErr)
}

func TestRunner_RecoversFromPanic(t *testing.T) {
	logger := testutil.CreateTestLogger(t)
	h := &recordingHandler{fn: func(ctx context.Context, job Job) error {
		if job.Prompt == "boom" {
			panic("handler exploded")
		}
		return errors.New("ordinary failure")
	}}
	r := NewRunner(h, 1, 4, logger)
	r.Start()

	require.NoError(t, r.Submit(context.Background(), Job{Prompt: "boom"}))
	require.NoError(t, r.Submit(context.Background(), Job{Prompt: "after"}))
	shutdown(t, r)

	jobs := h.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "after", jobs[1].Prompt)
}

func TestRunner_SubmitCatchUp(t *testing.T) {
	logger := testutil.CreateTestLogger(t)
	h := &recordingHandler{}
	r := NewRunner(h, 1, 4, logger)
	r.Start()

	user := testutil.Member("u1")
	history := []*storage.Message{{ID: "m1", SenderName: "alice", Content: "earlier"}}
	require.NoError(t, r.SubmitCatchUp(context.Background(), support.CatchUp{User: user, Prompt: "still there?", History: history}))
	shutdown(t, r)

	jobs := h.Jobs()
	require.Len(t, jobs, 1)
	job := jobs[0]
	assert.Equal(t, constants.RoomHelp, job.RoomID)
	assert.Equal(t, "still there?", job.Prompt)
	assert.Equal(t, CatchUpPreamble, job.Preamble)
	assert.Equal(t, constants.SupportAgentName, job.Identity)
	assert.True(t, job.AIContext)
	assert.True(t, job.CatchUp)
	assert.Equal(t, "u1", job.UserID())
	assert.Len(t, job.History, 1)
}

func TestRunner_GoDetachesAndWaits(t *testing.T) {
	logger := testutil.CreateTestLogger(t)
	r := NewRunner(&recordingHandler{}, 1, 1, logger)
	r.Start()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran bool
	var seen error
	r.Go(ctx, "test_task", func(ctx context.Context) {
		time.Sleep(20 * time.Millisecond)
		seen = ctx.Err()
		ran = true
	})
	shutdown(t, r)

	assert.True(t, ran, "Shutdown waits for background tasks")
	assert.NoError(t, seen)

	r.Go(context.Background(), "late", func(context.Context) { t.Error("task ran after shutdown") })
}
