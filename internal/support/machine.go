// Package support runs the human/AI hand-off of the help room.
//
// Each user owns one thread in one of three states. A plain user message
// opens a resolved thread for the assistant, an escalation phrase or a staff
// reply hands it to a human, and administrators may set any state.
package support

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/real-rm/golog"
	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/message"
	"github.com/real-rm/linkup/internal/metrics"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/util"
)

// ErrInvalidStatus is returned for a status outside the three thread states.
var ErrInvalidStatus = errors.New("invalid support status")

// Notifier delivers status updates.
type Notifier interface {
	SendToUser(ctx context.Context, userID string, payload message.Payload) int
	BroadcastToAdmins(ctx context.Context, payload message.Payload) int
}

// Machine applies thread transitions and announces them.
type Machine struct {
	threads storage.SupportStore
	notify  Notifier
	logger  *golog.Logger
	now     func() time.Time
}

// NewMachine creates a state machine over the thread store.
func NewMachine(threads storage.SupportStore, notify Notifier, logger *golog.Logger) *Machine {
	return &Machine{
		threads: threads,
		notify:  notify,
		logger:  logger.WithGroup("support"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ValidStatus reports whether s is a thread state.
func ValidStatus(s string) bool {
	switch s {
	case constants.SupportAIProcessing, constants.SupportWaiting, constants.SupportResolved:
		return true
	default:
		return false
	}
}

// IsEscalation reports whether content asks for a human.
func IsEscalation(content string) bool {
	return util.ContainsAny(content, constants.EscalationPhrases)
}

// Status returns the user's thread state, or "" when the user has no thread.
func (m *Machine) Status(ctx context.Context, userID string) (string, error) {
	th, err := m.threads.GetThread(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read support thread: %w", err)
	}
	return th.Status, nil
}

// IsWaiting reports whether a human owns the user's thread.
func (m *Machine) IsWaiting(ctx context.Context, userID string) (bool, error) {
	status, err := m.Status(ctx, userID)
	return status == constants.SupportWaiting, err
}

// Reopen hands the user's thread back to the assistant. It does nothing when
// the assistant already owns it.
func (m *Machine) Reopen(ctx context.Context, userID, username string) error {
	current, err := m.Status(ctx, userID)
	if err != nil {
		return err
	}
	// No else needed: early return pattern (guard clause)
	if current == constants.SupportAIProcessing {
		return nil
	}
	return m.transition(ctx, userID, username, constants.SupportAIProcessing)
}

// OnUserMessage applies a non-staff message to the sender's thread and
// returns the resulting state.
func (m *Machine) OnUserMessage(ctx context.Context, userID, username, content string) (string, error) {
	current, err := m.Status(ctx, userID)
	if err != nil {
		return "", err
	}

	next := current
	switch {
	case IsEscalation(content):
		next = constants.SupportWaiting
	case current == "" || current == constants.SupportResolved:
		next = constants.SupportAIProcessing
	}
	// No else needed: early return pattern (guard clause)
	if next == current {
		return current, nil
	}
	if err := m.transition(ctx, userID, username, next); err != nil {
		return current, err
	}
	return next, nil
}

// OnStaffReply hands the receiver's thread to a human.
func (m *Machine) OnStaffReply(ctx context.Context, receiverID string) (string, error) {
	th, err := m.threads.GetThread(ctx, receiverID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("failed to read support thread: %w", err)
	}
	username := ""
	// No else needed: optional operation (thread may not exist yet)
	if th != nil {
		username = th.Username
		if th.Status == constants.SupportWaiting {
			return th.Status, nil
		}
	}
	if err := m.transition(ctx, receiverID, username, constants.SupportWaiting); err != nil {
		return "", err
	}
	return constants.SupportWaiting, nil
}

// SetStatus is the explicit administrator transition. It always writes and
// announces, even when the state does not change.
func (m *Machine) SetStatus(ctx context.Context, userID, username, status string) error {
	if userID == "" {
		return storage.ErrInvalidID
	}
	if !ValidStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return m.transition(ctx, userID, username, status)
}

func (m *Machine) transition(ctx context.Context, userID, username, status string) error {
	if err := m.threads.SetThreadStatus(ctx, userID, username, status, m.now()); err != nil {
		return fmt.Errorf("failed to update support thread: %w", err)
	}
	metrics.SupportTransitions.WithLabelValues(status).Inc()
	m.logger.Info("Support thread transition", "user_id", userID, "status", status)

	m.notify.SendToUser(ctx, userID, message.SupportStatusForUser(constants.RoomHelp, status))
	m.notify.BroadcastToAdmins(ctx, message.SupportStatusForStaff(userID, username, status))
	return nil
}
