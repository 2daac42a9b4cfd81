package llm

import (
	"time"

	"github.com/rs/zerolog"
)

// Role represents the author of a content block
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Modality names an output kind the model may produce
type Modality string

const (
	ModalityText  Modality = "TEXT"
	ModalityImage Modality = "IMAGE"
)

// Part is a single piece of content. The transport decoder produces exactly
// one of TextPart, InlineDataPart or UnknownPart for each wire part.
type Part interface {
	part()
}

// TextPart carries a text fragment
type TextPart struct {
	Text string
}

// InlineDataPart carries a binary payload such as a generated image
type InlineDataPart struct {
	MIMEType string
	Data     []byte
}

// UnknownPart stands for a wire part of a kind this client does not handle
type UnknownPart struct {
	Kind string
}

func (TextPart) part()       {}
func (InlineDataPart) part() {}
func (UnknownPart) part()    {}

// Content is a role-tagged list of parts. A nil Parts slice means the
// response carried no parts at all.
type Content struct {
	Role  Role
	Parts []Part
}

// Candidate is one alternative in a response chunk
type Candidate struct {
	Content      *Content
	FinishReason string
}

// ResponseChunk is one unit of a streamed response
type ResponseChunk struct {
	Candidates []Candidate
	Usage      *Usage
}

// Usage reports token counts when the API includes them
type Usage struct {
	PromptTokens     int
	CandidatesTokens int
	TotalTokens      int
}

// GenerateRequest is a full-transcript generation request
type GenerateRequest struct {
	Model            string
	Contents         []Content
	Modalities       []Modality
	ResponseMIMEType string
	Temperature      *float32
}

// StreamEvent is delivered on a generation stream. Exactly one of Chunk and
// Err is set; an event with Err is the last one on the channel.
type StreamEvent struct {
	Chunk *ResponseChunk
	Err   error
}

// ClientOptions contains options for creating an LLM client
type ClientOptions struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	DefaultModel string
	Logger       *zerolog.Logger
}

// ClientOption is a functional option for configuring clients
type ClientOption func(*ClientOptions)

// WithAPIKey sets the API key
func WithAPIKey(key string) ClientOption {
	return func(o *ClientOptions) {
		o.APIKey = key
	}
}

// WithBaseURL sets the base URL
func WithBaseURL(url string) ClientOption {
	return func(o *ClientOptions) {
		o.BaseURL = url
	}
}

// WithTimeout sets the request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(o *ClientOptions) {
		o.Timeout = timeout
	}
}

// WithMaxRetries sets how often the initial request is retried
func WithMaxRetries(retries int) ClientOption {
	return func(o *ClientOptions) {
		o.MaxRetries = retries
	}
}

// WithModel sets the default model
func WithModel(model string) ClientOption {
	return func(o *ClientOptions) {
		o.DefaultModel = model
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(l zerolog.Logger) ClientOption {
	return func(o *ClientOptions) {
		o.Logger = &l
	}
}

// TextContent is a helper building a single-text content block
func TextContent(role Role, text string) Content {
	return Content{Role: role, Parts: []Part{TextPart{Text: text}}}
}
