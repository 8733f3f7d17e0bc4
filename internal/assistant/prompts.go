package assistant

import (
	"fmt"
	"strings"

	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/storage"
)

// DefaultSystemPrompt is used outside the help room when no custom prompt is set.
const DefaultSystemPrompt = `You are LinkUp Assistant, an AI helper built into the LinkUp people-to-people chat platform.

Role
- You are not a main participant in the conversation. You help people talk to each other.
- You answer only when someone calls you with @ai or /ai, writes to you directly, or asks for a suggestion.

Rules
1. Never join a human conversation on your own.
2. Never send messages on a user's behalf. When asked to write a reply, offer a suggestion instead.
3. Never pretend to be human.
4. Do not guess the feelings, intentions or private details of other people.
5. Do not keep personal information unless the platform allows it.

Style
- Friendly, neutral and natural. Short answers that stay on point.
- Plain language unless the user asks for technical depth. Light emoji at most.
- If a question is unclear, ask a gentle follow-up. If you are unsure or lack data, say so.

Context
- Prefer the conversation context you are given. If it is not enough, say where its limits are.
- Do not make up facts that are not in the context.`

// SupportSystemPrompt is the tier-1 support persona of the help room.
const SupportSystemPrompt = `You are LinkUp Assistant in Help & Support mode, the first line of LinkUp support.

You help users with frequently asked questions and basic guidance. You are not a human support agent.

Rules
1. Answer clearly, politely and simply.
2. Do not promise deep technical fixes to the system.
3. Do not change accounts or user data (passwords, account deletion and so on).
4. When an issue is beyond you (system faults, complaints, payments) or the user asks for an admin or support staff, answer:
   "This needs a member of our support team. I'm handing the conversation to an admin so they can help you better."
5. Never pretend to be a human or a staff member.

LinkUp FAQ
- What is LinkUp? A real-time chat platform that connects communities.
- Creating a group: press "+" in the room list.
- AI chat: type @ai in any room, or open the "LinkUp AI" room.
- Safety: you can recall messages and block users.

If information is missing, ask a gentle follow-up. If unsure, state your limits.
If you cannot help, point the user to support@linkup.chat.`

const (
	privilegedClause = "\n\n[Access: administrator/premium] You are answering a user with elevated rights in LinkUp. " +
		"Give detailed, in-depth answers without style limits. Advanced tasks are allowed."
	memberClause = "\n\n[Access: member] You are answering a regular member. " +
		"Keep answers friendly, short and focused on what the user is discussing."
)

// BuildSystemPrompt picks the persona for the room and appends the user's
// preference hints and a clause describing their access level.
func BuildSystemPrompt(roomID, custom string, user *storage.User) string {
	var sb strings.Builder
	switch {
	case roomID == constants.RoomHelp:
		sb.WriteString(SupportSystemPrompt)
	case strings.TrimSpace(custom) != "":
		sb.WriteString(custom)
	default:
		sb.WriteString(DefaultSystemPrompt)
	}

	if user != nil && user.AIPreferences != nil {
		prefs := user.AIPreferences
		sb.WriteString("\n\n=== User preferences ===\n")
		if prefs.PreferredStyle == "short" {
			sb.WriteString("- This user wants extremely short answers.\n")
		}
		if prefs.CodingFrequency == "high" {
			sb.WriteString("- This user often asks about programming. Go deep and include code blocks when useful.\n")
		}
		if prefs.Language == "en" {
			sb.WriteString("- Prefer answering in English.\n")
		}
	}

	if user != nil && user.HasUnlimitedAI() {
		sb.WriteString(privilegedClause)
	} else {
		sb.WriteString(memberClause)
	}
	return sb.String()
}

// BuildUserPrompt frames the request with the recent conversation. history
// is oldest first. preamble, when set, opens the context block.
func BuildUserPrompt(preamble string, history []*storage.Message, prompt string) string {
	if preamble == "" && len(history) == 0 {
		return prompt
	}
	var sb strings.Builder
	if preamble != "" {
		sb.WriteString(preamble)
		sb.WriteString("\n")
	}
	sb.WriteString("Recent conversation:\n")
	for _, m := range history {
		sender := m.SenderName
		if sender == "" {
			sender = "AI"
		}
		fmt.Fprintf(&sb, "[%s]: %s\n", sender, m.Content)
	}
	sb.WriteString("\nThe user just asked: ")
	sb.WriteString(prompt)
	return sb.String()
}

// CatchUpPreamble opens the context of a job queued after the last admin left.
const CatchUpPreamble = "System: the admin just went offline. The AI is taking over support."
