package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/real-rm/linkup/internal/constants"
)

// GeminiProvider streams from the Gemini generateContent API.
type GeminiProvider struct {
	backend
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiStreamEvent struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Stream implements Provider.
func (p *GeminiProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	body := geminiRequest{Contents: make([]geminiContent, 0, len(req.Messages))}
	// No else needed: optional operation (system prompt may be empty)
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	for _, m := range req.Messages {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		body.Contents = append(body.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}

	endpoint := p.endpoint
	if endpoint == "" {
		endpoint = constants.DefaultGeminiEndpoint
	}
	target := endpoint + "/v1beta/models/" + url.PathEscape(p.model) + ":streamGenerateContent?alt=sse"

	resp, err := p.post(ctx, target, body, map[string]string{"x-goog-api-key": p.apiKey})
	if err != nil {
		return nil, err
	}

	return p.stream(ctx, resp, func(data string) (string, bool, error) {
		var ev geminiStreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return "", false, nil
		}
		if ev.Error != nil {
			return "", false, errors.New(ev.Error.Message)
		}
		if len(ev.Candidates) == 0 {
			return "", false, nil
		}
		var sb strings.Builder
		for _, part := range ev.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
		return sb.String(), false, nil
	}), nil
}
