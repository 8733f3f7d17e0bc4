package storage

import (
	"strings"
	"time"

	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/message"
)

// AIPreferences are per-user hints folded into the assistant's system prompt.
type AIPreferences struct {
	PreferredStyle  string `bson:"preferred_style,omitempty" json:"preferred_style,omitempty"`
	CodingFrequency string `bson:"coding_frequency,omitempty" json:"coding_frequency,omitempty"`
	Language        string `bson:"language,omitempty" json:"language,omitempty"`
}

// User is the subset of the account document the router reads.
type User struct {
	ID               string         `bson:"id"`
	Username         string         `bson:"username"`
	FullName         string         `bson:"full_name,omitempty"`
	Avatar           string         `bson:"avatar,omitempty"`
	AvatarURL        string         `bson:"avatar_url,omitempty"`
	IsOnline         bool           `bson:"is_online"`
	LastSeen         *time.Time     `bson:"last_seen,omitempty"`
	ShowOnlineStatus *bool          `bson:"show_online_status,omitempty"`
	Role             string         `bson:"role,omitempty"`
	IsSuperuser      bool           `bson:"is_superuser"`
	Permissions      []string       `bson:"permissions,omitempty"`
	BlockedUsers     []string       `bson:"blocked_users,omitempty"`
	AIPreferences    *AIPreferences `bson:"ai_preferences,omitempty"`
	AIRestricted     bool           `bson:"ai_restricted"`
}

// IsStaff reports whether the user acts as support staff.
func (u *User) IsStaff() bool {
	return u != nil && (u.IsSuperuser || u.Role == constants.RoleAdmin)
}

// DisplayName prefers the full name.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// AvatarLink returns whichever avatar field is populated.
func (u *User) AvatarLink() string {
	if u.Avatar != "" {
		return u.Avatar
	}
	return u.AvatarURL
}

// ShowsOnline is the user's visibility preference; absent means visible.
func (u *User) ShowsOnline() bool {
	return u.ShowOnlineStatus == nil || *u.ShowOnlineStatus
}

// Blocks reports whether u has blocked userID.
func (u *User) Blocks(userID string) bool {
	for _, id := range u.BlockedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// HasUnlimitedAI reports whether daily AI quotas apply to the user.
func (u *User) HasUnlimitedAI() bool {
	if u.Role == constants.RoleAdmin || u.IsSuperuser {
		return true
	}
	for _, p := range u.Permissions {
		if p == constants.PermissionAIUnlimited {
			return true
		}
	}
	return false
}

// Room is a chat room. The reserved ids "ai" and "help" may have no document.
type Room struct {
	ID           string     `bson:"id"`
	Name         string     `bson:"name,omitempty"`
	Type         string     `bson:"type"`
	IsAIRoom     bool       `bson:"is_ai_room"`
	AIRestricted bool       `bson:"ai_restricted"`
	UpdatedAt    *time.Time `bson:"updated_at,omitempty"`
}

// Membership links a user to a room.
type Membership struct {
	RoomID   string    `bson:"room_id"`
	UserID   string    `bson:"user_id"`
	Role     string    `bson:"role,omitempty"`
	JoinedAt time.Time `bson:"joined_at"`
}

// Message is a persisted chat message. SenderID is empty for assistant output.
type Message struct {
	ID             string                 `bson:"id"`
	RoomID         string                 `bson:"room_id"`
	SenderID       string                 `bson:"sender_id,omitempty"`
	SenderName     string                 `bson:"sender_name,omitempty"`
	SenderAvatar   string                 `bson:"sender_avatar,omitempty"`
	ReceiverID     string                 `bson:"receiver_id,omitempty"`
	Content        string                 `bson:"content"`
	FileURL        string                 `bson:"file_url,omitempty"`
	FileName       string                 `bson:"file_name,omitempty"`
	FileType       string                 `bson:"file_type,omitempty"`
	Timestamp      time.Time              `bson:"timestamp"`
	IsBot          bool                   `bson:"is_bot"`
	IsEdited       bool                   `bson:"is_edited"`
	EditedAt       *time.Time             `bson:"edited_at,omitempty"`
	IsRecalled     bool                   `bson:"is_recalled"`
	IsPinned       bool                   `bson:"is_pinned"`
	IsForwarded    bool                   `bson:"is_forwarded"`
	Status         string                 `bson:"status"`
	ReplyToID      string                 `bson:"reply_to_id,omitempty"`
	ReplyToContent string                 `bson:"reply_to_content,omitempty"`
	SharedPost     map[string]interface{} `bson:"shared_post,omitempty"`
	Reactions      map[string][]string    `bson:"reactions,omitempty"`
	DeletedByUsers []string               `bson:"deleted_by_users"`
}

// ToPayload renders the outbound "message" frame. Timestamps are left as
// time.Time; the registry normalizes them on delivery.
func (m *Message) ToPayload() message.Payload {
	p := message.New(message.TypeMessage,
		"id", m.ID,
		"message_id", m.ID,
		"room_id", m.RoomID,
		"sender_name", m.SenderName,
		"sender_avatar", m.SenderAvatar,
		"content", m.Content,
		"timestamp", m.Timestamp,
		"is_bot", m.IsBot,
		"is_edited", m.IsEdited,
		"is_recalled", m.IsRecalled,
		"is_pinned", m.IsPinned,
		"is_forwarded", m.IsForwarded,
		"status", m.Status,
		"deleted_by_users", m.DeletedByUsers,
	)
	p["sender_id"] = nilIfEmpty(m.SenderID)
	p["receiver_id"] = nilIfEmpty(m.ReceiverID)
	p["reply_to_id"] = nilIfEmpty(m.ReplyToID)
	p["reply_to_content"] = nilIfEmpty(m.ReplyToContent)
	p["file_url"] = nilIfEmpty(m.FileURL)
	p["file_name"] = nilIfEmpty(m.FileName)
	p["file_type"] = nilIfEmpty(m.FileType)
	if m.SharedPost != nil {
		p["shared_post"] = m.SharedPost
	}
	if len(m.Reactions) > 0 {
		p["reactions"] = m.Reactions
	}
	if m.DeletedByUsers == nil {
		p["deleted_by_users"] = []string{}
	}
	return p
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// SupportThread tracks the human/AI hand-off state of one user's support conversation.
type SupportThread struct {
	UserID    string    `bson:"user_id"`
	Username  string    `bson:"username,omitempty"`
	Status    string    `bson:"status"`
	Note      string    `bson:"note,omitempty"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// AIUsage records one assistant generation for quota accounting.
type AIUsage struct {
	MessageID string    `bson:"message_id"`
	Timestamp time.Time `bson:"timestamp"`
	Day       int       `bson:"dt"`
	UserID    string    `bson:"user_id"`
	RoomID    string    `bson:"room_id"`
	Status    string    `bson:"status"`
	Model     string    `bson:"model,omitempty"`
	ErrorMsg  string    `bson:"error_msg,omitempty"`
}

// Report is a moderation report filed against a message.
type Report struct {
	ID             string    `bson:"id"`
	ReporterID     string    `bson:"reporter_id"`
	ReporterName   string    `bson:"reporter_name"`
	ReportedID     string    `bson:"reported_id"`
	ReportedName   string    `bson:"reported_name"`
	MessageID      string    `bson:"message_id"`
	MessageSnippet string    `bson:"message_snippet"`
	RoomID         string    `bson:"room_id"`
	Type           string    `bson:"type"`
	Content        string    `bson:"content,omitempty"`
	Timestamp      time.Time `bson:"timestamp"`
	Status         string    `bson:"status"`
}

// SystemLog is an operational record surfaced in the admin console.
type SystemLog struct {
	Type      string    `bson:"type"`
	UserID    string    `bson:"user_id,omitempty"`
	RoomID    string    `bson:"room_id,omitempty"`
	Message   string    `bson:"message"`
	Timestamp time.Time `bson:"timestamp"`
}

// SystemConfig is the runtime settings document. Nil fields are unset.
type SystemConfig struct {
	Type              string  `bson:"type"`
	AIEnabled         *bool   `bson:"ai_enabled,omitempty"`
	AIAutoReply       *bool   `bson:"ai_auto_reply,omitempty"`
	MaintenanceMode   *bool   `bson:"maintenance_mode,omitempty"`
	MaxMessageLength  *int    `bson:"max_message_length,omitempty"`
	AILimitPerUser    *int    `bson:"ai_limit_per_user,omitempty"`
	AILimitPerGroup   *int    `bson:"ai_limit_per_group,omitempty"`
	AICooldownSeconds *int    `bson:"ai_cooldown_seconds,omitempty"`
	AISystemPrompt    *string `bson:"ai_system_prompt,omitempty"`
}

// FriendRequest is read to find a user's accepted friends.
type FriendRequest struct {
	FromID string `bson:"from_id"`
	ToID   string `bson:"to_id"`
	Status string `bson:"status"`
}

// DirectPeer extracts the other participant from a "direct_<a>_<b>" room id.
func DirectPeer(roomID, self string) string {
	if !strings.HasPrefix(roomID, constants.DirectRoomPrefix) {
		return ""
	}
	parts := strings.Split(roomID, "_")
	if len(parts) < 3 {
		return ""
	}
	if parts[2] == self {
		return parts[1]
	}
	return parts[2]
}
