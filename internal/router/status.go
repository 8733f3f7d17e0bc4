package router

import (
	"context"
	"fmt"

	"github.com/real-rm/linkup/internal/message"
)

// SetPresence records the user's online flag and tells each accepted friend.
// A friend sees the user offline when the user hides their status or when
// either side blocks the other.
func (mr *MessageRouter) SetPresence(ctx context.Context, userID string, online bool) error {
	if err := mr.store.SetOnline(ctx, userID, online, mr.now()); err != nil {
		return fmt.Errorf("failed to update online status: %w", err)
	}

	user, err := mr.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	friendIDs, err := mr.store.AcceptedFriends(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load friends: %w", err)
	}
	// No else needed: early return pattern (guard clause)
	if len(friendIDs) == 0 {
		return nil
	}
	friends, err := mr.store.GetUsers(ctx, friendIDs)
	if err != nil {
		return fmt.Errorf("failed to load friend documents: %w", err)
	}

	visible := online && user.ShowsOnline()
	notified := 0
	for _, id := range friendIDs {
		friend := friends[id]
		if friend == nil {
			continue
		}
		blocked := friend.Blocks(userID) || user.Blocks(id)
		mr.notify.SendToUser(ctx, id, message.UserStatusChange(userID, visible && !blocked))
		notified++
	}
	mr.logger.Debug("Presence announced", "user_id", userID, "online", online, "friends", notified)
	return nil
}
