package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nachoal/gemini-chat-go/conversation"
	"github.com/nachoal/gemini-chat-go/llm"
)

// Config contains session configuration
type Config struct {
	Model            string
	PersonaPrompt    string
	PersonaAck       string
	Modalities       []llm.Modality
	ResponseMIMEType string
	Temperature      *float32
	ReplayImages     bool
	EventBuffer      int
	Logger           zerolog.Logger
	Now              func() time.Time
}

// DefaultConfig returns a default session configuration. The model always
// gets asked for both modalities; it decides per turn what to produce.
func DefaultConfig() Config {
	return Config{
		PersonaPrompt:    conversation.DefaultPersonaPrompt,
		PersonaAck:       conversation.DefaultPersonaAck,
		Modalities:       []llm.Modality{llm.ModalityImage, llm.ModalityText},
		ResponseMIMEType: "text/plain",
		ReplayImages:     true,
		EventBuffer:      64,
		Logger:           zerolog.Nop(),
		Now:              time.Now,
	}
}

// Session is one chat: it owns the transcript and drives one model turn
// per user message. Turns are serialized.
type Session struct {
	id      string
	client  llm.Client
	store   *conversation.Store
	reducer *Reducer
	config  Config
	log     zerolog.Logger
	mu      sync.Mutex
}

// NewSession creates a session and seeds the persona pair
func NewSession(client llm.Client, sink ImageSaver, opts ...Option) (*Session, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.EventBuffer < 0 {
		config.EventBuffer = 0
	}

	id := uuid.NewString()
	log := config.Logger.With().Str("session_id", id).Logger()

	store := conversation.NewStore()
	if err := store.Seed(config.PersonaPrompt, config.PersonaAck); err != nil {
		return nil, fmt.Errorf("failed to seed conversation: %w", err)
	}

	log.Info().Str("model", modelName(config, client)).Msg("session started")

	return &Session{
		id:      id,
		client:  client,
		store:   store,
		reducer: NewReducer(store, sink, config.Now, log),
		config:  config,
		log:     log,
	}, nil
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Model returns the model used for requests
func (s *Session) Model() string {
	return modelName(s.config, s.client)
}

// SetModel switches the model used for subsequent turns. It waits for an
// in-flight turn to finish.
func (s *Session) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.Model = model
	s.log.Info().Str("model", model).Msg("model switched")
}

// Greeting returns the scripted persona acknowledgment
func (s *Session) Greeting() string {
	return s.config.PersonaAck
}

// Snapshot returns the transcript to date
func (s *Session) Snapshot() []conversation.Turn {
	return s.store.Snapshot()
}

// Turns returns the number of turns in the transcript
func (s *Session) Turns() int {
	return s.store.Len()
}

// Send records text as a user turn, replays the whole transcript to the
// model and reduces the streamed answer. Failures are emitted as an Error
// event and returned; the transcript keeps everything recorded before the
// failing turn.
func (s *Session) Send(ctx context.Context, text string, emit Emitter) (*Result, error) {
	if emit == nil {
		emit = Discard
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Cancelling on return releases the transport goroutine if the
	// reduction stops before the stream is drained.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.store.AppendUserTurn(text)
	start := time.Now()

	request := &llm.GenerateRequest{
		Model:            s.config.Model,
		Contents:         s.buildContents(s.store.Snapshot()),
		Modalities:       s.config.Modalities,
		ResponseMIMEType: s.config.ResponseMIMEType,
		Temperature:      s.config.Temperature,
	}

	s.log.Debug().
		Int("turns", len(request.Contents)).
		Bool("image_hint", LooksLikeImageRequest(text)).
		Msg("turn started")

	stream, err := s.client.GenerateStream(ctx, request)
	if err != nil {
		var te *llm.TransportError
		if !errors.As(err, &te) {
			err = &llm.TransportError{Message: "model request failed", Err: err}
		}
		return nil, s.fail(emit, err)
	}

	result, err := s.reducer.Reduce(ctx, stream, emit)
	if err != nil {
		return nil, s.fail(emit, err)
	}

	s.log.Info().
		Int("text_len", len(result.Text)).
		Int("images", len(result.Images())).
		Dur("elapsed", time.Since(start)).
		Msg("turn complete")

	return result, nil
}

// SendAsync runs Send on a background goroutine and delivers its events
// over the returned channel, which is closed when the turn ends.
func (s *Session) SendAsync(ctx context.Context, text string) <-chan Event {
	events := make(chan Event, s.config.EventBuffer)
	go func() {
		defer close(events)
		_, _ = s.Send(ctx, text, ChannelEmitter(events))
	}()
	return events
}

func (s *Session) fail(emit Emitter, err error) error {
	s.log.Error().Err(err).Msg("turn failed")
	emit.Emit(Event{Type: EventError, Err: err})
	return err
}

// buildContents converts the transcript into request contents. Image
// segments are re-read from disk when replay is enabled; unreadable or
// disabled images are left out, and so is a turn left without parts.
func (s *Session) buildContents(turns []conversation.Turn) []llm.Content {
	contents := make([]llm.Content, 0, len(turns))
	for _, t := range turns {
		c := llm.Content{Role: llm.Role(t.Role)}
		for _, seg := range t.Segments {
			switch v := seg.(type) {
			case conversation.TextSegment:
				if v.Text != "" {
					c.Parts = append(c.Parts, llm.TextPart{Text: v.Text})
				}
			case conversation.ImageSegment:
				if !s.config.ReplayImages {
					continue
				}
				data, err := os.ReadFile(v.Path)
				if err != nil {
					s.log.Warn().Err(err).Str("path", v.Path).Msg("image not replayed")
					continue
				}
				c.Parts = append(c.Parts, llm.InlineDataPart{MIMEType: v.MIMEType, Data: data})
			}
		}
		if len(c.Parts) > 0 {
			contents = append(contents, c)
		}
	}
	return contents
}

func modelName(config Config, client llm.Client) string {
	if config.Model != "" {
		return config.Model
	}
	if client != nil {
		return client.Model()
	}
	return ""
}

// Option is a functional option for configuring the session
type Option func(*Config)

// WithModel sets the model name sent with each request
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithPersona sets the priming prompt and the model's scripted reply
func WithPersona(prompt, ack string) Option {
	return func(c *Config) {
		if prompt != "" {
			c.PersonaPrompt = prompt
		}
		if ack != "" {
			c.PersonaAck = ack
		}
	}
}

// WithReplayImages controls whether saved images are sent back to the model
func WithReplayImages(replay bool) Option {
	return func(c *Config) {
		c.ReplayImages = replay
	}
}

// WithResponseMIMEType sets the requested response MIME type. An empty
// value keeps the default.
func WithResponseMIMEType(mimeType string) Option {
	return func(c *Config) {
		if mimeType != "" {
			c.ResponseMIMEType = mimeType
		}
	}
}

// WithTemperature sets the sampling temperature. A nil value leaves the
// model default in place.
func WithTemperature(temp *float32) Option {
	return func(c *Config) {
		c.Temperature = temp
	}
}

// WithLogger sets the session logger
func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithClock sets the clock used to name saved images
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Now = now
	}
}
