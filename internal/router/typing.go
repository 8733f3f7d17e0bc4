package router

import (
	"context"

	"github.com/real-rm/linkup/internal/message"
	"github.com/real-rm/linkup/internal/storage"
)

// handleTyping relays a typing indicator. Nothing is stored.
func (mr *MessageRouter) handleTyping(ctx context.Context, user *storage.User, ev *message.Event) error {
	payload := message.Typing(ev.RoomID, user.ID, user.Username, ev.TypingStatus())
	mr.deliver(ctx, ev.RoomID, mr.loadRoom(ctx, ev.RoomID), user, ev.ReceiverID, payload)
	return nil
}
