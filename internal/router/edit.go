package router

import (
	"context"

	chaterrors "github.com/real-rm/linkup/internal/errors"
	"github.com/real-rm/linkup/internal/message"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/util"
)

// handleEdit replaces the content of the sender's own message and refreshes
// every reply quoting it.
func (mr *MessageRouter) handleEdit(ctx context.Context, user *storage.User, ev *message.Event) error {
	msg, err := mr.loadMessage(ctx, ev.MessageID)
	if err != nil {
		return err
	}
	// No else needed: early return pattern (guard clause)
	if msg.SenderID != user.ID {
		return chaterrors.ErrNotOwner()
	}

	content := ev.EditedContent()
	if err := mr.store.EditMessage(ctx, msg.ID, content, mr.now()); err != nil {
		return chaterrors.ErrDatabaseError(err)
	}
	n, err := mr.store.UpdateReplyPreviews(ctx, msg.ID, content)
	if err != nil {
		util.LogError(mr.logger, "router", "update reply previews", err, "message_id", msg.ID)
	}
	mr.logger.Debug("Message edited", "message_id", msg.ID, "previews", n)

	mr.deliverMutation(ctx, user, msg, message.New(message.TypeEditMessage,
		"message_id", msg.ID,
		"content", content,
		"room_id", msg.RoomID,
	))
	return nil
}
