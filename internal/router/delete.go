package router

import (
	"context"
	"errors"

	chaterrors "github.com/real-rm/linkup/internal/errors"
	"github.com/real-rm/linkup/internal/message"
	"github.com/real-rm/linkup/internal/storage"
)

// handleDeleteForMe hides a message from the acting user only.
func (mr *MessageRouter) handleDeleteForMe(ctx context.Context, user *storage.User, ev *message.Event) error {
	err := mr.store.HideMessage(ctx, ev.MessageID, user.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return chaterrors.ErrNotFound("Message")
	}
	if err != nil {
		return chaterrors.ErrDatabaseError(err)
	}

	mr.notify.SendToUser(ctx, user.ID, message.New(message.TypeDeleteSuccess,
		"message_id", ev.MessageID,
		"room_id", ev.RoomID,
	))
	return nil
}
