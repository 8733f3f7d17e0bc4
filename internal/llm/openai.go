package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// OpenAIProvider streams from an OpenAI-compatible chat completions API.
type OpenAIProvider struct {
	backend
}

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIStreamEvent struct {
	Choices []struct {
		Delta        openAIMessage `json:"delta"`
		FinishReason *string       `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Stream implements Provider.
func (p *OpenAIProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	messages := make([]openAIMessage, 0, len(req.Messages)+1)
	// No else needed: optional operation (system prompt may be empty)
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, openAIMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := p.post(ctx, p.endpoint+"/chat/completions", openAIRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   true,
	}, map[string]string{"Authorization": "Bearer " + p.apiKey})
	if err != nil {
		return nil, err
	}

	return p.stream(ctx, resp, func(data string) (string, bool, error) {
		if data == "[DONE]" {
			return "", true, nil
		}
		var ev openAIStreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			// Skip malformed events
			return "", false, nil
		}
		if ev.Error != nil {
			return "", false, errors.New(ev.Error.Message)
		}
		if len(ev.Choices) == 0 {
			return "", false, nil
		}
		return ev.Choices[0].Delta.Content, false, nil
	}), nil
}
