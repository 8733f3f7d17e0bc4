package router

import (
	"context"
	"errors"

	chaterrors "github.com/real-rm/linkup/internal/errors"
	"github.com/real-rm/linkup/internal/membership"
	"github.com/real-rm/linkup/internal/message"
	"github.com/real-rm/linkup/internal/storage"
)

// handleReadReceipt marks one message, or every unread message from others,
// as seen. Self-isolated rooms are marked silently.
func (mr *MessageRouter) handleReadReceipt(ctx context.Context, user *storage.User, ev *message.Event) error {
	if ev.MessageID != "" {
		err := mr.store.MarkSeen(ctx, ev.RoomID, ev.MessageID)
		if errors.Is(err, storage.ErrNotFound) {
			return chaterrors.ErrNotFound("Message")
		}
		if err != nil {
			return chaterrors.ErrDatabaseError(err)
		}
	} else {
		n, err := mr.store.MarkRoomSeen(ctx, ev.RoomID, user.ID)
		if err != nil {
			return chaterrors.ErrDatabaseError(err)
		}
		mr.logger.Debug("Room marked seen", "room_id", ev.RoomID, "user_id", user.ID, "count", n)
	}

	// No else needed: early return pattern (guard clause)
	if membership.IsSelfIsolated(ev.RoomID) {
		return nil
	}
	var messageID interface{}
	if ev.MessageID != "" {
		messageID = ev.MessageID
	}
	mr.deliver(ctx, ev.RoomID, mr.loadRoom(ctx, ev.RoomID), user, "", message.New(message.TypeReadReceipt,
		"room_id", ev.RoomID,
		"user_id", user.ID,
		"message_id", messageID,
	))
	return nil
}
