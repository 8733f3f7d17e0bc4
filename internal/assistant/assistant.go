// Package assistant decides when the LinkUp assistant answers, queues the
// work on a bounded runner and streams the reply to the right audience.
package assistant

import (
	"context"

	"github.com/google/uuid"
	"github.com/real-rm/golog"
	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/membership"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/util"
)

// Submitter queues jobs.
type Submitter interface {
	Submit(ctx context.Context, job Job) error
}

// Dispatcher turns accepted triggers into queued jobs.
type Dispatcher struct {
	eval     *Evaluator
	messages storage.MessageStore
	submit   Submitter
	logger   *golog.Logger
}

// NewDispatcher wires trigger evaluation to the runner.
func NewDispatcher(eval *Evaluator, messages storage.MessageStore, submit Submitter, logger *golog.Logger) *Dispatcher {
	return &Dispatcher{eval: eval, messages: messages, submit: submit, logger: logger.WithGroup("assistant")}
}

// OnMessage evaluates t and queues a job when the assistant should answer.
// It returns the decision so callers can log or test it.
func (d *Dispatcher) OnMessage(ctx context.Context, t Trigger) (Decision, error) {
	decision := d.eval.Evaluate(ctx, t)
	// No else needed: early return pattern (guard clause)
	if !decision.Respond {
		d.logger.Debug("Assistant not triggered", "room_id", t.RoomID, "reason", decision.Reason)
		return decision, nil
	}

	prompt := t.Content
	if decision.Explicit {
		prompt = StripTriggers(prompt)
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}

	job := Job{
		RoomID:    t.RoomID,
		Prompt:    prompt,
		History:   d.history(ctx, t),
		Identity:  IdentityFor(t.RoomID),
		User:      t.Sender,
		MessageID: uuid.New().String(),
		TriggerID: t.MessageID,
		AIContext: decision.AIContext,
	}
	if err := d.submit.Submit(ctx, job); err != nil {
		return decision, err
	}
	return decision, nil
}

// history loads the recent conversation, oldest first. Self-isolated rooms
// only see messages involving the sender.
func (d *Dispatcher) history(ctx context.Context, t Trigger) []*storage.Message {
	q := storage.MessageQuery{
		RoomID:    t.RoomID,
		ExcludeID: t.MessageID,
		Limit:     constants.ContextMessageCount,
	}
	if membership.IsSelfIsolated(t.RoomID) && t.Sender != nil {
		q.Participant = t.Sender.ID
	}
	msgs, err := d.messages.RecentMessages(ctx, q)
	if err != nil {
		util.LogError(d.logger, "assistant", "load context", err, "room_id", t.RoomID)
		return nil
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs
}
