// Package llm streams completions from hosted model providers and chains
// them so a failing provider falls through to the next one.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/real-rm/golog"
	"github.com/real-rm/linkup/internal/config"
	"github.com/real-rm/linkup/internal/metrics"
)

var (
	// ErrNoProviders is returned when the chain is empty
	ErrNoProviders = errors.New("no LLM providers configured")
	// ErrEmptyResponse is returned when a provider finishes without any text
	ErrEmptyResponse = errors.New("empty response from provider")
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the conversation sent to the model.
type Message struct {
	Role    string
	Content string
}

// Request is a single generation.
type Request struct {
	System   string
	Messages []Message
	// UserID tags the request for providers that track end users.
	UserID string
}

// Chunk is one piece of a streamed response. A chunk with Err set ends the
// stream unsuccessfully; a chunk with Done set ends it successfully.
type Chunk struct {
	Content string
	Done    bool
	Err     error
}

// Provider is one model backend.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	Model() string
	// Stream starts a generation. The returned channel is closed when the
	// stream ends or ctx is cancelled.
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
}

// NewProviders builds providers in configured order.
func NewProviders(cfgs []config.LLMProviderConfig, headerTimeout time.Duration, logger *golog.Logger) ([]Provider, error) {
	providers := make([]Provider, 0, len(cfgs))
	for _, c := range cfgs {
		p, err := newProvider(c, headerTimeout, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider %s: %w", c.ID, err)
		}
		providers = append(providers, p)
	}
	return providers, nil
}

func newProvider(c config.LLMProviderConfig, headerTimeout time.Duration, logger *golog.Logger) (Provider, error) {
	b := backend{
		id:       c.ID,
		apiKey:   c.APIKey,
		endpoint: strings.TrimRight(c.Endpoint, "/"),
		model:    c.Model,
		logger:   logger,
		client:   newStreamClient(headerTimeout),
	}
	switch strings.ToLower(c.Type) {
	case "gemini":
		return &GeminiProvider{backend: b}, nil
	case "openai":
		return &OpenAIProvider{backend: b}, nil
	case "anthropic":
		return &AnthropicProvider{backend: b}, nil
	case "dify":
		return &DifyProvider{backend: b}, nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", c.Type)
	}
}

// Result is the winning generation of a chain.
type Result struct {
	Content  string
	Provider string
	Model    string
}

// Chain tries providers in order until one produces a non-empty response.
type Chain struct {
	providers []Provider
	logger    *golog.Logger
}

// NewChain creates a fallback chain.
func NewChain(providers []Provider, logger *golog.Logger) *Chain {
	return &Chain{providers: providers, logger: logger.WithGroup("llm")}
}

// Len returns the number of providers.
func (c *Chain) Len() int {
	return len(c.providers)
}

// Generate streams req through the chain. onChunk sees every piece of text
// as it arrives, including text from a provider that later fails. The first
// provider to finish with non-empty text wins.
func (c *Chain) Generate(ctx context.Context, req Request, onChunk func(text string)) (*Result, error) {
	// No else needed: early return pattern (guard clause)
	if len(c.providers) == 0 {
		return nil, ErrNoProviders
	}

	var errs []error
	for i, p := range c.providers {
		if i > 0 {
			metrics.LLMFallbacks.Inc()
		}
		text, err := c.try(ctx, p, req, onChunk)
		if err == nil {
			c.logger.Info("LLM generation complete", "provider", p.Name(), "model", p.Model(), "length", len(text))
			return &Result{Content: text, Provider: p.Name(), Model: p.Model()}, nil
		}
		metrics.LLMErrors.WithLabelValues(p.Name()).Inc()
		c.logger.Warn("LLM provider failed", "provider", p.Name(), "model", p.Model(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))

		// No else needed: early return pattern (guard clause)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("all LLM providers failed: %w", errors.Join(errs...))
}

func (c *Chain) try(ctx context.Context, p Provider, req Request, onChunk func(string)) (string, error) {
	metrics.LLMRequests.WithLabelValues(p.Name()).Inc()
	start := time.Now()
	defer func() {
		metrics.LLMLatency.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
	}()

	ch, err := p.Stream(ctx, req)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			drain(ch)
			return "", chunk.Err
		}
		if chunk.Content != "" {
			sb.WriteString(chunk.Content)
			// No else needed: optional operation (caller may not stream)
			if onChunk != nil {
				onChunk(chunk.Content)
			}
		}
		if chunk.Done {
			drain(ch)
			break
		}
	}
	// No else needed: early return pattern (guard clause)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

func drain(ch <-chan Chunk) {
	go func() {
		for range ch {
		}
	}()
}
