package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nachoal/gemini-chat-go/llm"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultTimeout = 5 * time.Minute
	defaultModel   = "gemini-2.0-flash-preview-image-generation"

	// SSE lines carrying base64 image payloads are far larger than
	// bufio.Scanner's default token size.
	maxEventSize = 64 << 20
)

// Client implements llm.Client for the Gemini generateContent API
type Client struct {
	options    llm.ClientOptions
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new Gemini client
func NewClient(opts ...llm.ClientOption) (*Client, error) {
	options := llm.ClientOptions{
		BaseURL:      defaultBaseURL,
		Timeout:      defaultTimeout,
		MaxRetries:   2,
		DefaultModel: defaultModel,
	}

	for _, opt := range opts {
		opt(&options)
	}

	// Get API key from environment if not provided
	if options.APIKey == "" {
		options.APIKey = os.Getenv("GOOGLE_API_KEY")
		if options.APIKey == "" {
			return nil, fmt.Errorf("Gemini API key not provided")
		}
	}

	log := zerolog.Nop()
	if options.Logger != nil {
		log = *options.Logger
	}

	return &Client{
		options:    options,
		httpClient: &http.Client{Timeout: options.Timeout},
		log:        log.With().Str("component", "gemini").Logger(),
	}, nil
}

// Model returns the default model name
func (c *Client) Model() string {
	return c.options.DefaultModel
}

// GenerateStream sends the transcript to streamGenerateContent and decodes
// the SSE response into chunks.
func (c *Client) GenerateStream(ctx context.Context, request *llm.GenerateRequest) (<-chan llm.StreamEvent, error) {
	model := request.Model
	if model == "" {
		model = c.options.DefaultModel
	}

	body, err := json.Marshal(buildRequest(request))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse",
		strings.TrimRight(c.options.BaseURL, "/"), url.PathEscape(model))

	c.log.Debug().
		Str("model", model).
		Int("contents", len(request.Contents)).
		Int("body_bytes", len(body)).
		Msg("stream request")

	var resp *http.Response
	err = c.doWithRetries(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		c.setHeaders(req)

		r, err := c.httpClient.Do(req)
		if err != nil {
			return &llm.TransportError{Message: "failed to execute request", Err: err}
		}
		if r.StatusCode != http.StatusOK {
			defer r.Body.Close()
			return apiError(r)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	// One slot is kept so the terminal error can always be delivered
	events := make(chan llm.StreamEvent, 1)

	go func() {
		defer close(events)
		defer resp.Body.Close()

		// fail delivers err as the last event. Once ctx is done the consumer
		// may have stopped reading, so a pending chunk is dropped to make
		// room and the error is queued without blocking.
		fail := func(err error) {
			ev := llm.StreamEvent{Err: err}
			select {
			case events <- ev:
				return
			case <-ctx.Done():
			}
			select {
			case <-events:
			default:
			}
			events <- ev
		}

		cancelled := func() error {
			return &llm.TransportError{Message: "stream cancelled", Err: ctx.Err()}
		}

		send := func(ev llm.StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				fail(cancelled())
				return false
			}
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

		chunks := 0
		for scanner.Scan() {
			line := scanner.Text()

			// Skip blank separators and SSE comments
			if line == "" || strings.HasPrefix(line, ":") {
				continue
			}
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" || data == "[DONE]" {
				continue
			}

			chunk, err := decodeChunk([]byte(data))
			if err != nil {
				fail(&llm.TransportError{Message: "malformed stream payload", Err: err})
				return
			}
			chunks++
			if !send(llm.StreamEvent{Chunk: chunk}) {
				return
			}
		}

		if ctx.Err() != nil {
			fail(cancelled())
			return
		}
		if err := scanner.Err(); err != nil {
			fail(&llm.TransportError{Message: "stream read failed", Err: err})
			return
		}
		c.log.Debug().Int("chunks", chunks).Msg("stream complete")
	}()

	return events, nil
}

// Close cleans up resources
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// setHeaders sets common headers for requests
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-goog-api-key", c.options.APIKey)
	req.Header.Set("User-Agent", "gemini-chat-go/1.0")
}

// doWithRetries retries the initial request on rate limits and server
// errors. Nothing is retried once the stream has started.
func (c *Client) doWithRetries(ctx context.Context, fn func() error) error {
	var lastErr error

	for i := 0; i <= c.options.MaxRetries; i++ {
		if i > 0 {
			delay := time.Duration(i) * time.Second
			c.log.Warn().Err(lastErr).Int("attempt", i+1).Dur("delay", delay).Msg("retrying request")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &llm.TransportError{Message: "request cancelled", Err: ctx.Err()}
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
	}

	return lastErr
}

func retryable(err error) bool {
	te, ok := err.(*llm.TransportError)
	if !ok {
		return false
	}
	switch te.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable:
		return true
	}
	return false
}

func apiError(resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var errResp struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	msg := strings.TrimSpace(string(respBody))
	if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &llm.TransportError{StatusCode: resp.StatusCode, Message: msg}
}
