package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/real-rm/gohelper"
)

// DifyProvider streams from a Dify chat application. Dify keeps its own
// system prompt, so the request system text is sent as a leading turn.
type DifyProvider struct {
	backend
}

type difyRequest struct {
	Inputs       map[string]string `json:"inputs"`
	Query        string            `json:"query"`
	ResponseMode string            `json:"response_mode"`
	User         string            `json:"user"`
}

type difyStreamEvent struct {
	Event   string `json:"event"`
	Answer  string `json:"answer"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Stream implements Provider.
func (p *DifyProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	resp, err := p.post(ctx, p.endpoint+"/chat-messages", difyRequest{
		Inputs:       map[string]string{},
		Query:        formatTranscript(req),
		ResponseMode: "streaming",
		User:         fmt.Sprintf("linkup-%s-%d", req.UserID, gohelper.TimeToDateInt(time.Now())),
	}, map[string]string{"Authorization": "Bearer " + p.apiKey})
	if err != nil {
		return nil, err
	}

	return p.stream(ctx, resp, func(data string) (string, bool, error) {
		var ev difyStreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return "", false, nil
		}
		switch ev.Event {
		case "message", "agent_message":
			return ev.Answer, false, nil
		case "message_end":
			return "", true, nil
		case "error":
			return "", false, fmt.Errorf("dify stream error: %s: %s", ev.Code, ev.Message)
		default:
			return "", false, nil
		}
	}), nil
}

// formatTranscript flattens a request into a single query string.
func formatTranscript(req Request) string {
	var sb strings.Builder
	if req.System != "" {
		sb.WriteString("System: ")
		sb.WriteString(req.System)
		sb.WriteString("\n\n")
	}
	for i, m := range req.Messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		if m.Role == RoleAssistant {
			sb.WriteString("Assistant: ")
		} else {
			sb.WriteString("User: ")
		}
		sb.WriteString(m.Content)
	}
	return sb.String()
}
