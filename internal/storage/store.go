// Package storage persists users, rooms, messages, support threads and AI usage.
// MongoStore is the production implementation on gomongo; MemoryStore backs tests.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("document not found")
	// ErrInvalidID is returned when a required id is empty
	ErrInvalidID = errors.New("id cannot be empty")
)

// MessageQuery selects recent messages of a room.
type MessageQuery struct {
	RoomID string
	// Participant limits results to messages sent by or addressed to this user.
	// Required for self-isolated rooms.
	Participant string
	// ExcludeID drops one message, usually the one that triggered the query.
	ExcludeID string
	Limit     int
}

// UsageQuery counts successful AI generations on one day.
// Exactly one of UserID and RoomID is expected to be set.
type UsageQuery struct {
	Day    int
	UserID string
	RoomID string
}

// UserStore reads user documents.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	GetUsers(ctx context.Context, userIDs []string) (map[string]*User, error)
	SetOnline(ctx context.Context, userID string, online bool, at time.Time) error
	ListStaff(ctx context.Context) ([]string, error)
	AcceptedFriends(ctx context.Context, userID string) ([]string, error)
}

// RoomStore reads rooms and maintains memberships.
type RoomStore interface {
	GetRoom(ctx context.Context, roomID string) (*Room, error)
	TouchRoom(ctx context.Context, roomID string, at time.Time) error
	RoomMembers(ctx context.Context, roomID string) ([]string, error)
	EnsureMember(ctx context.Context, roomID, userID, role string) error
}

// MessageStore persists chat messages and their mutations.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, messageID string) (*Message, error)
	EditMessage(ctx context.Context, messageID, content string, at time.Time) error
	RecallMessage(ctx context.Context, messageID, placeholder string) error
	UpdateReplyPreviews(ctx context.Context, parentID, content string) (int64, error)
	HideMessage(ctx context.Context, messageID, userID string) error
	SetPinned(ctx context.Context, messageID string, pinned bool) error
	SetReactions(ctx context.Context, messageID string, reactions map[string][]string) error
	MarkSeen(ctx context.Context, roomID, messageID string) error
	MarkRoomSeen(ctx context.Context, roomID, readerID string) (int64, error)
	// RecentMessages returns up to q.Limit messages, newest first.
	RecentMessages(ctx context.Context, q MessageQuery) ([]*Message, error)
	// LastHumanMessages returns the newest non-bot message of every sender in the room.
	LastHumanMessages(ctx context.Context, roomID string) ([]*Message, error)
	// HasReplyAfter reports whether the user received a message in the room after t.
	HasReplyAfter(ctx context.Context, roomID, userID string, t time.Time) (bool, error)
	// HasRecentStaffReply reports whether a human addressed the user in the room since t.
	HasRecentStaffReply(ctx context.Context, roomID, userID string, since time.Time) (bool, error)
}

// SupportStore tracks support threads.
type SupportStore interface {
	GetThread(ctx context.Context, userID string) (*SupportThread, error)
	SetThreadStatus(ctx context.Context, userID, username, status string, at time.Time) error
}

// UsageStore records AI generations and their failures.
type UsageStore interface {
	InsertUsage(ctx context.Context, rec *AIUsage) error
	CountUsage(ctx context.Context, q UsageQuery) (int, error)
	InsertSystemLog(ctx context.Context, entry *SystemLog) error
}

// ReportStore persists moderation reports.
type ReportStore interface {
	InsertReport(ctx context.Context, r *Report) error
}

// ConfigStore reads the runtime settings document.
type ConfigStore interface {
	GetSystemConfig(ctx context.Context) (*SystemConfig, error)
}

// Store is everything the router needs from persistence.
type Store interface {
	UserStore
	RoomStore
	MessageStore
	SupportStore
	UsageStore
	ReportStore
	ConfigStore
}
