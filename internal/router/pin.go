package router

import (
	"context"

	chaterrors "github.com/real-rm/linkup/internal/errors"
	"github.com/real-rm/linkup/internal/message"
	"github.com/real-rm/linkup/internal/storage"
)

// handlePin toggles the pinned flag of a message.
func (mr *MessageRouter) handlePin(ctx context.Context, user *storage.User, ev *message.Event) error {
	msg, err := mr.loadMessage(ctx, ev.MessageID)
	if err != nil {
		return err
	}
	pinned := !msg.IsPinned
	if err := mr.store.SetPinned(ctx, msg.ID, pinned); err != nil {
		return chaterrors.ErrDatabaseError(err)
	}

	mr.deliverMutation(ctx, user, msg, message.New(message.TypePinMessage,
		"message_id", msg.ID,
		"room_id", msg.RoomID,
		"is_pinned", pinned,
	))
	return nil
}
