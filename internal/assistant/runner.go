package assistant

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/real-rm/golog"
	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/metrics"
	"github.com/real-rm/linkup/internal/support"
	"github.com/real-rm/linkup/internal/util"
)

var (
	// ErrQueueFull is returned when every worker is busy and the queue is full
	ErrQueueFull = errors.New("assistant queue is full")
	// ErrRunnerClosed is returned after Shutdown
	ErrRunnerClosed = errors.New("assistant runner is closed")
)

// Handler executes one job.
type Handler interface {
	Run(ctx context.Context, job Job) error
}

// Runner is a bounded worker pool for assistant jobs. Jobs run under a
// context detached from the submitter, so a closing connection never cancels
// a generation.
type Runner struct {
	handler Handler
	jobs    chan queuedJob
	workers int
	logger  *golog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type queuedJob struct {
	ctx context.Context
	job Job
}

// NewRunner sizes the pool. Non-positive values take the defaults.
func NewRunner(handler Handler, workers, queueSize int, logger *golog.Logger) *Runner {
	if workers <= 0 {
		workers = constants.DefaultRunnerWorkers
	}
	if queueSize <= 0 {
		queueSize = constants.DefaultRunnerQueueSize
	}
	return &Runner{
		handler: handler,
		jobs:    make(chan queuedJob, queueSize),
		workers: workers,
		logger:  logger.WithGroup("assistant"),
	}
}

// Start launches the workers.
func (r *Runner) Start() {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work()
	}
	r.logger.Info("Assistant runner started", "workers", r.workers, "queue", cap(r.jobs))
}

func (r *Runner) work() {
	defer r.wg.Done()
	for q := range r.jobs {
		metrics.AIQueueDepth.Dec()
		r.runOne(q)
	}
}

func (r *Runner) runOne(q queuedJob) {
	defer util.Recover(r.logger, "assistant_job")
	ctx, cancel := util.NewDetachedContext(q.ctx, 0)
	defer cancel()

	if err := r.handler.Run(ctx, q.job); err != nil {
		r.logger.Warn("Assistant job ended with error",
			util.TraceFields(ctx,
				"room_id", q.job.RoomID,
				"user_id", q.job.UserID(),
				"message_id", q.job.MessageID,
				"error", err,
			)...)
	}
}

// Submit queues job without blocking.
func (r *Runner) Submit(ctx context.Context, job Job) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	// No else needed: early return pattern (guard clause)
	if r.closed {
		return ErrRunnerClosed
	}
	if job.MessageID == "" {
		job.MessageID = uuid.New().String()
	}
	select {
	case r.jobs <- queuedJob{ctx: ctx, job: job}:
		metrics.AIQueueDepth.Inc()
		return nil
	default:
		metrics.AIJobs.WithLabelValues("rejected").Inc()
		r.logger.Warn("Assistant queue full, job dropped", "room_id", job.RoomID, "user_id", job.UserID())
		return ErrQueueFull
	}
}

// SubmitCatchUp queues a support reply for a user left unanswered when the
// last admin went offline.
func (r *Runner) SubmitCatchUp(ctx context.Context, c support.CatchUp) error {
	return r.Submit(ctx, Job{
		RoomID:    constants.RoomHelp,
		Prompt:    c.Prompt,
		History:   c.History,
		Preamble:  CatchUpPreamble,
		Identity:  constants.SupportAgentName,
		User:      c.User,
		AIContext: true,
		CatchUp:   true,
	})
}

// Go runs fn on its own goroutine with panic recovery. Connection teardown
// uses it for work that must outlive the connection.
func (r *Runner) Go(ctx context.Context, component string, fn func(ctx context.Context)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	// No else needed: early return pattern (guard clause)
	if r.closed {
		return
	}
	r.wg.Add(1)
	util.SafeGo(r.logger, component, func() {
		defer r.wg.Done()
		detached, cancel := util.NewDetachedContext(ctx, constants.LongContextTimeout)
		defer cancel()
		fn(detached)
	})
}

// Shutdown stops accepting jobs and waits for queued ones to finish or ctx to end.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("Assistant runner stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
