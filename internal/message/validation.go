package message

import (
	"fmt"
	"strings"
)

// Validation constants
const (
	MaxIDLength       = 128  // Room, message and user id length
	MaxFileURLLength  = 2048 // Maximum file URL length
	MaxFileNameLength = 255
	MaxEmojiLength    = 32
	MaxReasonLength   = 1000
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Validate checks the envelope and the fields each event type requires.
// Content length is left to the handlers, which apply max_message_length in
// runes; the socket read limit bounds the frame itself.
func (e *Event) Validate() error {
	if e.Type == "" {
		return &ValidationError{Field: "type", Message: "type is required"}
	}
	if !isValidEventType(e.Type) {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("invalid event type: %s", e.Type)}
	}

	if err := e.validateTypeSpecificFields(); err != nil {
		return err
	}

	return e.validateFieldLengths()
}

func (e *Event) validateTypeSpecificFields() error {
	switch e.Type.Canonical() {
	case TypeMessage:
		if e.RoomID == "" {
			return &ValidationError{Field: "room_id", Message: "room_id is required"}
		}
		if strings.TrimSpace(e.Content) == "" && e.FileURL == "" {
			return &ValidationError{Field: "content", Message: "content or file_url is required"}
		}

	case TypeEdit:
		if e.MessageID == "" {
			return &ValidationError{Field: "message_id", Message: "message_id is required"}
		}
		if strings.TrimSpace(e.EditedContent()) == "" {
			return &ValidationError{Field: "content", Message: "content is required for edit"}
		}

	case TypeRecall, TypeDeleteForMe, TypePin, TypeReport:
		if e.MessageID == "" {
			return &ValidationError{Field: "message_id", Message: "message_id is required"}
		}

	case TypeReaction:
		if e.MessageID == "" {
			return &ValidationError{Field: "message_id", Message: "message_id is required"}
		}
		if e.Emoji == "" {
			return &ValidationError{Field: "emoji", Message: "emoji is required for reaction"}
		}

	case TypeReadReceipt, TypeTyping:
		if e.RoomID == "" {
			return &ValidationError{Field: "room_id", Message: "room_id is required"}
		}
	}

	return nil
}

func (e *Event) validateFieldLengths() error {
	ids := map[string]string{
		"id":          e.ID,
		"room_id":     e.RoomID,
		"message_id":  e.MessageID,
		"reply_to_id": e.ReplyToID,
		"receiver_id": e.ReceiverID,
	}
	for field, v := range ids {
		if len(v) > MaxIDLength {
			return &ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s exceeds maximum length of %d characters", field, MaxIDLength),
			}
		}
	}

	if len(e.FileURL) > MaxFileURLLength {
		return &ValidationError{
			Field:   "file_url",
			Message: fmt.Sprintf("file_url exceeds maximum length of %d characters", MaxFileURLLength),
		}
	}

	if len(e.FileName) > MaxFileNameLength {
		return &ValidationError{
			Field:   "file_name",
			Message: fmt.Sprintf("file_name exceeds maximum length of %d characters", MaxFileNameLength),
		}
	}

	if len(e.Emoji) > MaxEmojiLength {
		return &ValidationError{Field: "emoji", Message: "emoji is too long"}
	}

	if len(e.Reason) > MaxReasonLength {
		return &ValidationError{
			Field:   "reason",
			Message: fmt.Sprintf("reason exceeds maximum length of %d characters", MaxReasonLength),
		}
	}

	return nil
}

// Sanitize strips null bytes and surrounding whitespace from user-supplied strings.
func (e *Event) Sanitize() {
	e.ID = sanitizeString(e.ID)
	e.RoomID = sanitizeString(e.RoomID)
	e.MessageID = sanitizeString(e.MessageID)
	e.Content = sanitizeString(e.Content)
	e.NewContent = sanitizeString(e.NewContent)
	e.FileURL = sanitizeString(e.FileURL)
	e.FileName = sanitizeString(e.FileName)
	e.FileType = sanitizeString(e.FileType)
	e.ReplyToID = sanitizeString(e.ReplyToID)
	e.ReceiverID = sanitizeString(e.ReceiverID)
	e.Emoji = sanitizeString(e.Emoji)
	e.Reason = sanitizeString(e.Reason)
	e.ReportType = sanitizeString(e.ReportType)
}

// sanitizeString sanitizes a string by removing null bytes and trimming whitespace.
// HTML escaping is NOT applied here; it belongs at render time only, and
// escaping at ingestion would garble the text fed to the model.
func sanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}

func isValidEventType(t EventType) bool {
	switch t {
	case TypeMessage, TypeSendMessage, TypeEdit, TypeEditMessage,
		TypeRecall, TypeRecallMsg, TypeDeleteForMe, TypeDeleteMsg,
		TypePin, TypePinMessage, TypeReaction, TypeReadReceipt,
		TypeReport, TypeTyping, TypePing:
		return true
	default:
		return false
	}
}
