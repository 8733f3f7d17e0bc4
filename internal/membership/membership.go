// Package membership resolves who receives an event posted to a room.
//
// Ordinary rooms deliver to their members. The reserved rooms "ai" and
// "help" are self-isolated: visibility depends only on the sender, the
// receiver and, for help, the staff on duty.
package membership

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/real-rm/golog"
	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/metrics"
	"github.com/real-rm/linkup/internal/storage"
)

// Class is the delivery class of a room.
type Class int

const (
	ClassPublic Class = iota
	ClassGroup
	ClassDirect
	ClassAIPersonal
	ClassSupport
)

func (c Class) String() string {
	switch c {
	case ClassPublic:
		return "public"
	case ClassGroup:
		return "group"
	case ClassDirect:
		return "direct"
	case ClassAIPersonal:
		return "ai_personal"
	case ClassSupport:
		return "support"
	default:
		return "unknown"
	}
}

// SelfIsolated reports whether room membership is ignored for delivery.
func (c Class) SelfIsolated() bool {
	return c == ClassAIPersonal || c == ClassSupport
}

// IsSelfIsolated reports whether roomID is one of the reserved rooms.
func IsSelfIsolated(roomID string) bool {
	return roomID == constants.RoomAI || roomID == constants.RoomHelp
}

// Classify maps a room to its delivery class. room may be nil when the room
// has no document.
func Classify(roomID string, room *storage.Room) Class {
	switch roomID {
	case constants.RoomAI:
		return ClassAIPersonal
	case constants.RoomHelp:
		return ClassSupport
	}
	if room == nil {
		if strings.HasPrefix(roomID, constants.DirectRoomPrefix) {
			return ClassDirect
		}
		return ClassPublic
	}
	switch room.Type {
	case constants.RoomTypeDirect:
		return ClassDirect
	case constants.RoomTypeGroup, constants.RoomTypeBot, constants.RoomTypeSupport:
		return ClassGroup
	default:
		return ClassPublic
	}
}

// Resolver lists room members from room_members.
type Resolver struct {
	rooms  storage.RoomStore
	logger *golog.Logger
}

// NewResolver creates a resolver over the room store.
func NewResolver(rooms storage.RoomStore, logger *golog.Logger) *Resolver {
	return &Resolver{rooms: rooms, logger: logger.WithGroup("membership")}
}

// Members returns the user ids of the room.
func (r *Resolver) Members(ctx context.Context, roomID string) ([]string, error) {
	// No else needed: early return pattern (guard clause)
	if roomID == "" {
		return nil, storage.ErrInvalidID
	}
	start := time.Now()
	ids, err := r.rooms.RoomMembers(ctx, roomID)
	metrics.MongoDBOperationDuration.WithLabelValues("room_members").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to list members of %s: %w", roomID, err)
	}
	r.logger.Debug("Resolved room members", "room_id", roomID, "count", len(ids))
	return ids, nil
}
