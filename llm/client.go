package llm

import (
	"context"
	"fmt"
)

// Client defines the interface for generative model providers
type Client interface {
	// GenerateStream sends the transcript and returns a stream of response
	// chunks. The channel is closed when the response is complete; a
	// failure mid-stream, including ctx cancellation, is reported as a
	// final event with Err set.
	GenerateStream(ctx context.Context, request *GenerateRequest) (<-chan StreamEvent, error)

	// Model returns the default model name
	Model() string

	// Close cleans up any resources
	Close() error
}

// TransportError wraps a failure of the remote model call
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("model API error (status %d): %s", e.StatusCode, e.Message)
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Message
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
