package assistant

import (
	"context"
	"time"

	"github.com/real-rm/golog"
	"github.com/real-rm/linkup/internal/config"
	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/metrics"
	"github.com/real-rm/linkup/internal/ratelimit"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/util"
)

// generalRoomID is the one room where explicit calls stay silent while the
// assistant is switched off.
const generalRoomID = "general"

// SettingsReader returns the effective runtime settings.
type SettingsReader interface {
	Current(ctx context.Context) config.Settings
}

// Trigger is a freshly persisted human message.
type Trigger struct {
	RoomID    string
	Room      *storage.Room
	Sender    *storage.User
	MessageID string
	Content   string
	// SupportStatus is the sender's help thread state after the message was applied.
	SupportStatus string
}

// Decision is the outcome of trigger evaluation.
type Decision struct {
	Respond  bool
	Explicit bool
	// AIContext is set for AI-dedicated rooms.
	AIContext bool
	Reason    string
}

// Evaluator decides whether a message gets an assistant reply.
type Evaluator struct {
	settings SettingsReader
	cooldown ratelimit.Cooldown
	messages storage.MessageStore
	logger   *golog.Logger
	now      func() time.Time
}

// NewEvaluator wires trigger evaluation.
func NewEvaluator(settings SettingsReader, cooldown ratelimit.Cooldown, messages storage.MessageStore, logger *golog.Logger) *Evaluator {
	return &Evaluator{
		settings: settings,
		cooldown: cooldown,
		messages: messages,
		logger:   logger.WithGroup("assistant"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate applies the trigger rules to t. Accepting a trigger in a room that
// is not AI-dedicated claims the room cooldown.
func (e *Evaluator) Evaluate(ctx context.Context, t Trigger) Decision {
	d := Decision{
		Explicit:  IsExplicitCall(t.Content),
		AIContext: IsAIDedicated(t.RoomID, t.Room),
	}
	s := e.settings.Current(ctx)

	// No else needed: early return pattern (guard clause)
	if !s.AIEnabled {
		// Explicit calls still reach the orchestrator, which tells the user the assistant is off.
		d.Respond = d.Explicit && t.RoomID != generalRoomID
		d.Reason = "ai_disabled"
		return d
	}

	d.Respond = d.Explicit || (d.AIContext && s.AIAutoReply)
	if !d.Respond {
		d.Reason = "not_triggered"
		return d
	}

	if t.RoomID == constants.RoomHelp {
		if !e.allowInHelp(ctx, t, &d) {
			return d
		}
	}

	// No else needed: early return pattern (guard clause)
	if d.AIContext {
		d.Reason = "triggered"
		return d
	}
	claimed, err := e.cooldown.Claim(ctx, t.RoomID, s.AICooldown())
	if err != nil {
		util.LogError(e.logger, "assistant", "claim room cooldown", err, "room_id", t.RoomID)
		claimed = false
	}
	if !claimed {
		metrics.CooldownSuppressed.Inc()
		d.Respond = false
		d.Reason = "cooldown"
		return d
	}
	d.Reason = "triggered"
	return d
}

// allowInHelp applies the support hand-off rules and reports whether the
// assistant may still answer.
func (e *Evaluator) allowInHelp(ctx context.Context, t Trigger, d *Decision) bool {
	if t.Sender.IsStaff() {
		// Staff talk to users in help; only an explicit call reaches the assistant.
		d.Respond = d.Explicit
		d.Reason = "staff_sender"
		return d.Respond
	}
	if t.SupportStatus == constants.SupportWaiting {
		d.Respond = false
		d.Reason = "support_waiting"
		return false
	}
	// No else needed: early return pattern (guard clause)
	if d.Explicit {
		return true
	}
	recent, err := e.messages.HasRecentStaffReply(ctx, constants.RoomHelp, t.Sender.ID, e.now().Add(-constants.RecentHumanWindow))
	if err != nil {
		util.LogError(e.logger, "assistant", "check recent staff reply", err, "user_id", t.Sender.ID)
		return true
	}
	if recent {
		d.Respond = false
		d.Reason = "staff_active"
		return false
	}
	return true
}
