// Package router handles the chat events of a connection. Every handler
// persists its change first, then delivers it through the membership policy.
// A failed delivery never rolls back what was stored.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/real-rm/golog"
	"github.com/real-rm/linkup/internal/assistant"
	"github.com/real-rm/linkup/internal/config"
	"github.com/real-rm/linkup/internal/constants"
	chaterrors "github.com/real-rm/linkup/internal/errors"
	"github.com/real-rm/linkup/internal/membership"
	"github.com/real-rm/linkup/internal/message"
	"github.com/real-rm/linkup/internal/metrics"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/util"
)

var (
	// ErrNilUser is returned when an event arrives without an acting user
	ErrNilUser = errors.New("user cannot be nil")
	// ErrNilEvent is returned when a nil event is provided
	ErrNilEvent = errors.New("event cannot be nil")
)

// Notifier sends frames to individual users and to staff.
type Notifier interface {
	SendToUser(ctx context.Context, userID string, payload message.Payload) int
	BroadcastToAdmins(ctx context.Context, payload message.Payload) int
}

// Deliverer resolves the audience of an event and sends it.
type Deliverer interface {
	Deliver(ctx context.Context, d membership.Delivery, payload message.Payload) (int, error)
}

// SettingsReader returns the effective runtime settings.
type SettingsReader interface {
	Current(ctx context.Context) config.Settings
}

// SupportFlow applies help-room messages to support threads.
type SupportFlow interface {
	OnUserMessage(ctx context.Context, userID, username, content string) (string, error)
	OnStaffReply(ctx context.Context, receiverID string) (string, error)
}

// TriggerSink receives every persisted human message for assistant evaluation.
type TriggerSink interface {
	OnMessage(ctx context.Context, t assistant.Trigger) (assistant.Decision, error)
}

// Deps groups the collaborators of a MessageRouter.
type Deps struct {
	Store     storage.Store
	Policy    Deliverer
	Notifier  Notifier
	Settings  SettingsReader
	Support   SupportFlow
	Assistant TriggerSink
}

// MessageRouter dispatches inbound events to their handlers.
type MessageRouter struct {
	store     storage.Store
	policy    Deliverer
	notify    Notifier
	settings  SettingsReader
	support   SupportFlow
	assistant TriggerSink
	logger    *golog.Logger
	now       func() time.Time
	newID     func() string
}

// NewMessageRouter creates a router. Support and Assistant may be nil, which
// disables help-room transitions and assistant triggers.
func NewMessageRouter(deps Deps, logger *golog.Logger) *MessageRouter {
	return &MessageRouter{
		store:     deps.Store,
		policy:    deps.Policy,
		notify:    deps.Notifier,
		settings:  deps.Settings,
		support:   deps.Support,
		assistant: deps.Assistant,
		logger:    logger.WithGroup("router"),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
	}
}

// Route validates ev and runs its handler on behalf of user. Events are
// handled one at a time per connection; the caller owns that ordering.
func (mr *MessageRouter) Route(ctx context.Context, user *storage.User, ev *message.Event) error {
	if user == nil {
		return ErrNilUser
	}
	if ev == nil {
		return ErrNilEvent
	}

	ev.Sanitize()
	if err := ev.Validate(); err != nil {
		return mr.fail("invalid", ev, validationError(err))
	}
	kind := ev.Type.Canonical()
	metrics.EventsReceived.WithLabelValues(string(kind)).Inc()

	var err error
	switch kind {
	case message.TypeMessage:
		err = mr.handleSend(ctx, user, ev)
	case message.TypeEdit:
		err = mr.handleEdit(ctx, user, ev)
	case message.TypeRecall:
		err = mr.handleRecall(ctx, user, ev)
	case message.TypeDeleteForMe:
		err = mr.handleDeleteForMe(ctx, user, ev)
	case message.TypePin:
		err = mr.handlePin(ctx, user, ev)
	case message.TypeReaction:
		err = mr.handleReaction(ctx, user, ev)
	case message.TypeReadReceipt:
		err = mr.handleReadReceipt(ctx, user, ev)
	case message.TypeReport:
		err = mr.handleReport(ctx, user, ev)
	case message.TypeTyping:
		err = mr.handleTyping(ctx, user, ev)
	case message.TypePing:
		// Answered by the connection itself.
	default:
		err = chaterrors.ErrInvalidMessageFormat(fmt.Sprintf("unknown event type %s", ev.Type), nil)
	}
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return mr.fail(string(kind), ev, err)
	}
	return nil
}

// fail counts and logs a handler error. kind is a bounded metric label.
func (mr *MessageRouter) fail(kind string, ev *message.Event, err error) error {
	category := "unexpected"
	if ce, ok := chaterrors.As(err); ok {
		category = string(ce.Category)
	}
	metrics.HandlerErrors.WithLabelValues(kind, category).Inc()
	if chaterrors.IsClientError(err) {
		mr.logger.Debug("Event rejected", "type", ev.Type, "error", err)
	} else {
		util.LogError(mr.logger, "router", "handle "+string(ev.Type), err, "room_id", ev.RoomID, "message_id", ev.MessageID)
	}
	return err
}

// validationError maps a protocol validation failure onto the error taxonomy.
func validationError(err error) error {
	var ve *message.ValidationError
	if errors.As(err, &ve) && ve.Field != "type" && strings.Contains(ve.Message, "is required") {
		return chaterrors.ErrMissingField(ve.Field)
	}
	return chaterrors.ErrInvalidMessageFormat(err.Error(), err)
}

// ErrorPayload renders err as the error frame sent to the actor.
func ErrorPayload(err error) message.Payload {
	if ce, ok := chaterrors.As(err); ok {
		return message.ErrorFromInfo(ce.ToErrorInfo())
	}
	return message.Error("", constants.GenericErrorText)
}

// loadRoom returns the room document, or nil when the room has none.
func (mr *MessageRouter) loadRoom(ctx context.Context, roomID string) *storage.Room {
	room, err := mr.store.GetRoom(ctx, roomID)
	if err != nil {
		// No else needed: optional operation (reserved and legacy rooms have no document)
		if !errors.Is(err, storage.ErrNotFound) {
			util.LogError(mr.logger, "router", "load room", err, "room_id", roomID)
		}
		return nil
	}
	return room
}

// loadMessage fetches a message, mapping a miss onto NOT_FOUND.
func (mr *MessageRouter) loadMessage(ctx context.Context, messageID string) (*storage.Message, error) {
	msg, err := mr.store.GetMessage(ctx, messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, chaterrors.ErrNotFound("Message")
	}
	if err != nil {
		return nil, chaterrors.ErrDatabaseError(err)
	}
	return msg, nil
}

// deliver routes payload for an event in roomID. Failures are logged and
// absorbed.
func (mr *MessageRouter) deliver(ctx context.Context, roomID string, room *storage.Room, sender *storage.User, receiverID string, payload message.Payload) int {
	d := membership.Delivery{
		RoomID:        roomID,
		Class:         membership.Classify(roomID, room),
		SenderID:      sender.ID,
		SenderIsStaff: sender.IsStaff(),
		ReceiverID:    receiverID,
	}
	n, err := mr.policy.Deliver(ctx, d, payload)
	if err != nil {
		util.LogError(mr.logger, "router", "deliver event", err, "room_id", roomID, "type", payload.Type())
		return 0
	}
	return n
}

// deliverMutation announces a change to an existing message to the audience
// of the original message.
func (mr *MessageRouter) deliverMutation(ctx context.Context, user *storage.User, msg *storage.Message, payload message.Payload) {
	receiver := msg.ReceiverID
	if membership.IsSelfIsolated(msg.RoomID) && msg.SenderID != user.ID && msg.SenderID != "" {
		// Staff acting on a user's help message address that user.
		receiver = msg.SenderID
	}
	mr.deliver(ctx, msg.RoomID, mr.loadRoom(ctx, msg.RoomID), user, receiver, payload)
}
