package assistant

import (
	"regexp"
	"strings"

	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/util"
)

// DefaultPrompt replaces a call that carried nothing but the trigger.
const DefaultPrompt = "Hello!"

var triggerPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(constants.AITriggers))
	for _, t := range constants.AITriggers {
		out = append(out, regexp.MustCompile("(?i)"+regexp.QuoteMeta(t)))
	}
	return out
}()

// IsExplicitCall reports whether content mentions the assistant.
func IsExplicitCall(content string) bool {
	return util.ContainsAny(content, constants.AITriggers)
}

// StripTriggers removes every trigger, in any case, and trims the result.
// An empty result becomes DefaultPrompt.
func StripTriggers(content string) string {
	out := content
	for _, re := range triggerPatterns {
		out = strings.TrimSpace(re.ReplaceAllString(out, ""))
	}
	if out == "" {
		return DefaultPrompt
	}
	return out
}

// IsAIDedicated reports whether the room auto-triggers the assistant.
func IsAIDedicated(roomID string, room *storage.Room) bool {
	if roomID == constants.RoomAI || roomID == constants.RoomHelp {
		return true
	}
	return room != nil && room.IsAIRoom
}

// IdentityFor names the assistant in a room.
func IdentityFor(roomID string) string {
	if roomID == constants.RoomHelp {
		return constants.SupportAgentName
	}
	return constants.AssistantName
}
