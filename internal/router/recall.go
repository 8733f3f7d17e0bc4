package router

import (
	"context"

	"github.com/real-rm/linkup/internal/constants"
	chaterrors "github.com/real-rm/linkup/internal/errors"
	"github.com/real-rm/linkup/internal/message"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/util"
)

// handleRecall replaces a message with the recall placeholder for everyone.
func (mr *MessageRouter) handleRecall(ctx context.Context, user *storage.User, ev *message.Event) error {
	msg, err := mr.loadMessage(ctx, ev.MessageID)
	if err != nil {
		return err
	}
	// No else needed: early return pattern (guard clause)
	if msg.SenderID != user.ID {
		return chaterrors.ErrNotOwner()
	}

	if err := mr.store.RecallMessage(ctx, msg.ID, constants.RecallPlaceholder); err != nil {
		return chaterrors.ErrDatabaseError(err)
	}
	if _, err := mr.store.UpdateReplyPreviews(ctx, msg.ID, constants.RecallPlaceholder); err != nil {
		util.LogError(mr.logger, "router", "update reply previews", err, "message_id", msg.ID)
	}

	mr.deliverMutation(ctx, user, msg, message.New(message.TypeRecallMsg,
		"message_id", msg.ID,
		"room_id", msg.RoomID,
	))
	return nil
}
