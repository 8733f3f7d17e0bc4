package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/real-rm/golog"
	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/metrics"
)

// backend holds what every HTTP provider shares.
type backend struct {
	id       string
	apiKey   string
	endpoint string
	model    string
	logger   *golog.Logger
	client   *http.Client
}

func (b *backend) Name() string  { return b.id }
func (b *backend) Model() string { return b.model }

// newStreamClient has no overall deadline: the caller's context bounds the
// stream. ResponseHeaderTimeout catches servers that accept the connection
// and never answer.
func newStreamClient(headerTimeout time.Duration) *http.Client {
	if headerTimeout <= 0 {
		headerTimeout = constants.LLMClientTimeout
	}
	return &http.Client{
		Timeout: 0,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: headerTimeout,
		},
	}
}

// post sends a JSON body and returns the response when the status is 200.
func (b *backend) post(ctx context.Context, url string, body interface{}, headers map[string]string) (*http.Response, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, constants.MaxLLMErrorBodySize))
		resp.Body.Close()
		return nil, fmt.Errorf("%s API error (status %d): %s", b.id, resp.StatusCode, string(errBody))
	}
	return resp, nil
}

// sseHandler interprets one "data:" payload. It returns the text to emit,
// whether the stream is finished, and an error for provider-reported failures.
type sseHandler func(data string) (text string, done bool, err error)

// stream reads server-sent events from resp on a goroutine and converts them
// to chunks. A stream that ends without an explicit terminator is treated as
// complete when the body closed cleanly.
func (b *backend) stream(ctx context.Context, resp *http.Response, handle sseHandler) <-chan Chunk {
	out := make(chan Chunk)

	go func() {
		defer close(out)
		defer recoverStreamPanic(ctx, out, b.id, b.logger)
		defer resp.Body.Close()

		send := func(c Chunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, constants.SSEInitialBufferSize), constants.SSEMaxLineSize)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				continue
			}

			text, done, err := handle(data)
			if err != nil {
				send(Chunk{Err: err})
				return
			}
			if text != "" && !send(Chunk{Content: text}) {
				return
			}
			if done {
				send(Chunk{Done: true})
				return
			}
		}

		if err := scanner.Err(); err != nil {
			send(Chunk{Err: fmt.Errorf("stream interrupted: %w", err)})
			return
		}
		send(Chunk{Done: true})
	}()

	return out
}

// recoverStreamPanic turns a panic in a stream goroutine into an error chunk
// so the consumer is never left waiting.
func recoverStreamPanic(ctx context.Context, out chan<- Chunk, component string, logger *golog.Logger) {
	r := recover()
	if r == nil {
		return
	}
	metrics.PanicsRecovered.WithLabelValues("llm_" + component).Inc()
	if logger != nil {
		logger.Error("Panic recovered in LLM stream",
			"component", component,
			"panic", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()))
	}
	select {
	case out <- Chunk{Err: fmt.Errorf("stream panic: %v", r)}:
	case <-ctx.Done():
	}
}
