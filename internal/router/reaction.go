package router

import (
	"context"

	chaterrors "github.com/real-rm/linkup/internal/errors"
	"github.com/real-rm/linkup/internal/message"
	"github.com/real-rm/linkup/internal/storage"
)

// ToggleReaction adds userID to the emoji's reactors, or removes it when
// already present. Emojis left without reactors are dropped. The input map is
// not modified.
func ToggleReaction(reactions map[string][]string, emoji, userID string) map[string][]string {
	out := make(map[string][]string, len(reactions)+1)
	for k, v := range reactions {
		if len(v) > 0 {
			out[k] = append([]string(nil), v...)
		}
	}

	users := out[emoji]
	for i, id := range users {
		if id == userID {
			users = append(users[:i], users[i+1:]...)
			if len(users) == 0 {
				delete(out, emoji)
			} else {
				out[emoji] = users
			}
			return out
		}
	}
	out[emoji] = append(users, userID)
	return out
}

// handleReaction toggles the user's reaction and announces the full set.
func (mr *MessageRouter) handleReaction(ctx context.Context, user *storage.User, ev *message.Event) error {
	msg, err := mr.loadMessage(ctx, ev.MessageID)
	if err != nil {
		return err
	}
	reactions := ToggleReaction(msg.Reactions, ev.Emoji, user.ID)
	if err := mr.store.SetReactions(ctx, msg.ID, reactions); err != nil {
		return chaterrors.ErrDatabaseError(err)
	}

	mr.deliverMutation(ctx, user, msg, message.New(message.TypeReaction,
		"message_id", msg.ID,
		"room_id", msg.RoomID,
		"reactions", reactions,
	))
	return nil
}
