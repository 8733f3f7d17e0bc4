package assistant

import (
	"github.com/real-rm/linkup/internal/storage"
)

// Job is one self-contained generation. It carries everything the
// orchestrator needs so it can run long after the triggering connection is gone.
type Job struct {
	RoomID string
	// Prompt is the user's request with triggers removed.
	Prompt string
	// History is the recent conversation, oldest first.
	History []*storage.Message
	// Preamble opens the context block, for example on catch-up replies.
	Preamble string
	// Identity is the sender name of the assistant's reply.
	Identity string
	User     *storage.User
	// MessageID is the id of the assistant message to produce.
	MessageID string
	// TriggerID is the id of the human message that caused the job.
	TriggerID string
	// AIContext routes progress frames to the requester only.
	AIContext      bool
	SuggestionMode bool
	// CatchUp marks a reply queued by the support sweep. It answers even
	// when a human owns the thread and hands the thread back to the assistant.
	CatchUp bool
}

// UserID returns the requester's id.
func (j Job) UserID() string {
	if j.User == nil {
		return ""
	}
	return j.User.ID
}

// Username returns the requester's username.
func (j Job) Username() string {
	if j.User == nil {
		return ""
	}
	return j.User.Username
}
