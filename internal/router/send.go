package router

import (
	"context"
	"errors"
	"strings"

	"github.com/real-rm/linkup/internal/assistant"
	"github.com/real-rm/linkup/internal/constants"
	chaterrors "github.com/real-rm/linkup/internal/errors"
	"github.com/real-rm/linkup/internal/membership"
	"github.com/real-rm/linkup/internal/message"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/util"
)

// handleSend persists a new message, delivers it and hands it to the
// assistant.
func (mr *MessageRouter) handleSend(ctx context.Context, user *storage.User, ev *message.Event) error {
	// Block lists and roles may have changed since the connection opened.
	if fresh, err := mr.store.GetUser(ctx, user.ID); err == nil {
		user = fresh
	}

	s := mr.settings.Current(ctx)
	// No else needed: early return pattern (guard clause)
	if s.MaintenanceMode && !user.IsStaff() {
		return chaterrors.ErrMaintenance()
	}
	content := strings.TrimSpace(ev.Content)
	if util.RuneLength(content) > s.MaxMessageLength {
		return chaterrors.ErrMessageTooLong(s.MaxMessageLength)
	}

	room := mr.loadRoom(ctx, ev.RoomID)
	class := membership.Classify(ev.RoomID, room)
	peer := ""
	if class == membership.ClassDirect {
		peer = ev.ReceiverID
		if peer == "" {
			peer = storage.DirectPeer(ev.RoomID, user.ID)
		}
		if err := mr.checkBlocks(ctx, user, peer); err != nil {
			return err
		}
	}

	if err := mr.store.EnsureMember(ctx, ev.RoomID, user.ID, constants.RoleMember); err != nil {
		return chaterrors.ErrDatabaseError(err)
	}
	// No else needed: optional operation (only direct rooms auto-join the recipient)
	if peer != "" {
		if err := mr.store.EnsureMember(ctx, ev.RoomID, peer, constants.RoleMember); err != nil {
			return chaterrors.ErrDatabaseError(err)
		}
	}

	now := mr.now()
	msg := &storage.Message{
		ID:             ev.ID,
		RoomID:         ev.RoomID,
		SenderID:       user.ID,
		SenderName:     user.DisplayName(),
		SenderAvatar:   user.AvatarLink(),
		ReceiverID:     ev.ReceiverID,
		Content:        content,
		FileURL:        ev.FileURL,
		FileName:       ev.FileName,
		FileType:       ev.FileType,
		Timestamp:      now,
		IsForwarded:    ev.IsForwarded,
		Status:         constants.StatusSent,
		ReplyToID:      ev.ReplyToID,
		SharedPost:     ev.SharedPost,
		DeletedByUsers: []string{},
	}
	if msg.ID == "" {
		msg.ID = mr.newID()
	}
	if msg.ReplyToID != "" {
		msg.ReplyToContent = mr.replyPreview(ctx, msg.ReplyToID)
	}

	if err := mr.store.InsertMessage(ctx, msg); err != nil {
		return chaterrors.ErrDatabaseError(err)
	}
	if err := mr.store.TouchRoom(ctx, msg.RoomID, now); err != nil {
		util.LogError(mr.logger, "router", "touch room", err, "room_id", msg.RoomID)
	}

	mr.deliver(ctx, msg.RoomID, room, user, msg.ReceiverID, msg.ToPayload())

	status := mr.applySupport(ctx, user, msg)
	mr.trigger(ctx, user, room, msg, status)
	return nil
}

// checkBlocks rejects a direct message when either side blocks the other.
func (mr *MessageRouter) checkBlocks(ctx context.Context, sender *storage.User, peerID string) error {
	// No else needed: early return pattern (guard clause)
	if peerID == "" || peerID == sender.ID {
		return nil
	}
	peer, err := mr.store.GetUser(ctx, peerID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return chaterrors.ErrDatabaseError(err)
	}
	if peer != nil && peer.Blocks(sender.ID) {
		return chaterrors.ErrBlockedBy()
	}
	if sender.Blocks(peerID) {
		return chaterrors.ErrBlocking()
	}
	return nil
}

func (mr *MessageRouter) replyPreview(ctx context.Context, parentID string) string {
	parent, err := mr.store.GetMessage(ctx, parentID)
	if err != nil {
		// No else needed: optional operation (a missing parent leaves no preview)
		if !errors.Is(err, storage.ErrNotFound) {
			util.LogError(mr.logger, "router", "load reply parent", err, "reply_to_id", parentID)
		}
		return ""
	}
	return parent.Content
}

// applySupport moves the help thread a message belongs to and returns the
// sender's resulting thread state.
func (mr *MessageRouter) applySupport(ctx context.Context, user *storage.User, msg *storage.Message) string {
	// No else needed: early return pattern (guard clause)
	if msg.RoomID != constants.RoomHelp || mr.support == nil {
		return ""
	}
	if user.IsStaff() {
		if msg.ReceiverID != "" {
			if _, err := mr.support.OnStaffReply(ctx, msg.ReceiverID); err != nil {
				util.LogError(mr.logger, "router", "apply staff reply", err, "receiver_id", msg.ReceiverID)
			}
		}
		return ""
	}
	status, err := mr.support.OnUserMessage(ctx, user.ID, user.Username, msg.Content)
	if err != nil {
		util.LogError(mr.logger, "router", "apply support message", err, "user_id", user.ID)
	}
	return status
}

func (mr *MessageRouter) trigger(ctx context.Context, user *storage.User, room *storage.Room, msg *storage.Message, status string) {
	// No else needed: early return pattern (guard clause)
	if mr.assistant == nil || msg.Content == "" {
		return
	}
	_, err := mr.assistant.OnMessage(ctx, assistant.Trigger{
		RoomID:        msg.RoomID,
		Room:          room,
		Sender:        user,
		MessageID:     msg.ID,
		Content:       msg.Content,
		SupportStatus: status,
	})
	if err != nil {
		util.LogError(mr.logger, "router", "queue assistant job", err, "room_id", msg.RoomID, "message_id", msg.ID)
	}
}
