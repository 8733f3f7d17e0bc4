package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/real-rm/linkup/internal/constants"
)

// AnthropicProvider streams from the Anthropic messages API.
type AnthropicProvider struct {
	backend
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
	Stream    bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Stream implements Provider.
func (p *AnthropicProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	messages := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := p.post(ctx, p.endpoint+"/messages", anthropicRequest{
		Model:     p.model,
		System:    req.System,
		Messages:  messages,
		MaxTokens: constants.DefaultAnthropicMaxTokens,
		Stream:    true,
	}, map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": constants.AnthropicAPIVersion,
	})
	if err != nil {
		return nil, err
	}

	return p.stream(ctx, resp, func(data string) (string, bool, error) {
		var ev anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return "", false, nil
		}
		switch ev.Type {
		case "content_block_delta":
			return ev.Delta.Text, false, nil
		case "message_stop":
			return "", true, nil
		case "error":
			return "", false, fmt.Errorf("anthropic stream error: %s: %s", ev.Error.Type, ev.Error.Message)
		default:
			return "", false, nil
		}
	}), nil
}
