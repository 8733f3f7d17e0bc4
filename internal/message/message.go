// Package message defines the wire protocol between clients and the router:
// the inbound Event envelope and the outbound payload builders.
package message

// EventType identifies an inbound or outbound frame.
type EventType string

// Inbound event types. Each pair of aliases routes to the same handler.
const (
	TypeMessage     EventType = "message"
	TypeSendMessage EventType = "send_message"
	TypeEdit        EventType = "edit"
	TypeEditMessage EventType = "edit_message"
	TypeRecall      EventType = "recall"
	TypeRecallMsg   EventType = "recall_message"
	TypeDeleteForMe EventType = "delete_for_me"
	TypeDeleteMsg   EventType = "delete_message"
	TypePin         EventType = "pin"
	TypePinMessage  EventType = "pin_message"
	TypeReaction    EventType = "reaction"
	TypeReadReceipt EventType = "read_receipt"
	TypeReport      EventType = "report"
	TypeTyping      EventType = "typing"
	TypePing        EventType = "ping"
)

// Outbound-only event types.
const (
	TypePong                EventType = "pong"
	TypeStart               EventType = "start"
	TypeChunk               EventType = "chunk"
	TypeEnd                 EventType = "end"
	TypeError               EventType = "error"
	TypeSupportStatusUpdate EventType = "support_status_update"
	TypeNewReport           EventType = "new_report"
	TypeReportSuccess       EventType = "report_success"
	TypeDeleteSuccess       EventType = "delete_for_me_success"
	TypeForceLogout         EventType = "force_logout"
	TypeUserStatusChange    EventType = "user_status_change"
	TypeAISuggestion        EventType = "ai_suggestion"
)

// ErrorInfo contains error details
type ErrorInfo struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
	RetryAfter  int    `json:"retry_after,omitempty"` // milliseconds
}

// Event is the inbound frame sent by clients. Only the fields relevant to
// Type are read by its handler.
type Event struct {
	Type        EventType              `json:"type"`
	ID          string                 `json:"id,omitempty"`
	RoomID      string                 `json:"room_id,omitempty"`
	MessageID   string                 `json:"message_id,omitempty"`
	Content     string                 `json:"content,omitempty"`
	NewContent  string                 `json:"new_content,omitempty"`
	FileURL     string                 `json:"file_url,omitempty"`
	FileName    string                 `json:"file_name,omitempty"`
	FileType    string                 `json:"file_type,omitempty"`
	ReplyToID   string                 `json:"reply_to_id,omitempty"`
	ReceiverID  string                 `json:"receiver_id,omitempty"`
	IsForwarded bool                   `json:"is_forwarded,omitempty"`
	SharedPost  map[string]interface{} `json:"shared_post,omitempty"`
	Emoji       string                 `json:"emoji,omitempty"`
	Status      *bool                  `json:"status,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
	ReportType  string                 `json:"report_type,omitempty"`
}

// EditedContent returns the replacement text of an edit event.
func (e *Event) EditedContent() string {
	if e.Content != "" {
		return e.Content
	}
	return e.NewContent
}

// TypingStatus reports the typing flag, defaulting to true when absent.
func (e *Event) TypingStatus() bool {
	if e.Status == nil {
		return true
	}
	return *e.Status
}

// Canonical maps alias event types onto the handler they route to.
func (t EventType) Canonical() EventType {
	switch t {
	case TypeSendMessage:
		return TypeMessage
	case TypeEditMessage:
		return TypeEdit
	case TypeRecallMsg:
		return TypeRecall
	case TypeDeleteMsg:
		return TypeDeleteForMe
	case TypePinMessage:
		return TypePin
	default:
		return t
	}
}

// Payload is an outbound frame. Values may contain time.Time or BSON object
// ids; the presence registry normalizes them before encoding.
type Payload map[string]interface{}

// Type returns the frame type, or "" when unset.
func (p Payload) Type() EventType {
	switch v := p["type"].(type) {
	case EventType:
		return v
	case string:
		return EventType(v)
	default:
		return ""
	}
}

// Clone returns a shallow copy so a shared payload can be relabelled per audience.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// New builds a payload of the given type from alternating key/value pairs.
func New(t EventType, kv ...interface{}) Payload {
	p := Payload{"type": string(t)}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		p[key] = kv[i+1]
	}
	return p
}

// Pong answers a ping.
func Pong() Payload { return New(TypePong) }

// Error builds the error frame sent to a single actor.
func Error(code, msg string) Payload {
	p := New(TypeError, "message", msg)
	if code != "" {
		p["code"] = code
	}
	return p
}

// ErrorFromInfo builds an error frame from structured error details.
func ErrorFromInfo(info *ErrorInfo) Payload {
	p := Error(info.Code, info.Message)
	p["recoverable"] = info.Recoverable
	if info.RetryAfter > 0 {
		p["retry_after"] = info.RetryAfter
	}
	return p
}

// Typing is the typing indicator shared by humans and the assistant.
func Typing(roomID, userID, username string, status bool) Payload {
	return New(TypeTyping, "room_id", roomID, "user_id", userID, "username", username, "status", status)
}

// SupportStatusForUser is the support thread update delivered to the thread owner.
func SupportStatusForUser(roomID, status string) Payload {
	return New(TypeSupportStatusUpdate, "room_id", roomID, "status", status)
}

// SupportStatusForStaff is the support thread update delivered to staff.
func SupportStatusForStaff(userID, username, status string) Payload {
	return New(TypeSupportStatusUpdate, "user_id", userID, "username", username, "status", status)
}

// UserStatusChange notifies a friend about presence changes.
func UserStatusChange(userID string, online bool) Payload {
	return New(TypeUserStatusChange, "user_id", userID, "is_online", online)
}

// ForceLogout precedes an administrative disconnect.
func ForceLogout(text string) Payload {
	return New(TypeForceLogout, "message", text)
}
