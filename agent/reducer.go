package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nachoal/gemini-chat-go/conversation"
	"github.com/nachoal/gemini-chat-go/llm"
)

// ImageSaver persists an inline image payload and returns its path
type ImageSaver interface {
	Save(data []byte, mimeType string, clockSeconds int64) (string, error)
}

// TurnAppender records a completed model turn
type TurnAppender interface {
	AppendModelTurn(segments []conversation.Segment)
}

// Result summarizes one reduced model turn
type Result struct {
	Text     string
	Segments []conversation.Segment
	Usage    *llm.Usage
}

// Images returns the image segments of the turn in arrival order
func (r *Result) Images() []conversation.ImageSegment {
	return conversation.Turn{Segments: r.Segments}.Images()
}

// Reducer folds a response stream into display events, saved images and
// one model turn.
type Reducer struct {
	store TurnAppender
	sink  ImageSaver
	now   func() time.Time
	log   zerolog.Logger
}

// NewReducer creates a reducer. A nil now defaults to time.Now.
func NewReducer(store TurnAppender, sink ImageSaver, now func() time.Time, log zerolog.Logger) *Reducer {
	if now == nil {
		now = time.Now
	}
	return &Reducer{store: store, sink: sink, now: now, log: log}
}

// Reduce consumes stream to exhaustion. On success the model turn is
// appended and TurnComplete is emitted last. If the stream reports an error,
// an image cannot be saved or ctx ends before the stream does, Reduce returns
// the error without appending anything; images saved before the failure stay
// on disk. An empty response is recorded as a model turn holding one empty
// text segment so user and model turns keep alternating.
func (r *Reducer) Reduce(ctx context.Context, stream <-chan llm.StreamEvent, emit Emitter) (*Result, error) {
	if emit == nil {
		emit = Discard
	}

	var text strings.Builder
	var segments []conversation.Segment
	var usage *llm.Usage

	for ev := range stream {
		if ev.Err != nil {
			r.log.Warn().Err(ev.Err).Int("segments", len(segments)).Msg("stream failed, turn discarded")
			return nil, ev.Err
		}

		chunk := ev.Chunk
		if chunk != nil && chunk.Usage != nil {
			usage = chunk.Usage
		}
		if chunk == nil || len(chunk.Candidates) == 0 ||
			chunk.Candidates[0].Content == nil || chunk.Candidates[0].Content.Parts == nil {
			continue
		}

		for _, part := range chunk.Candidates[0].Content.Parts {
			switch p := part.(type) {
			case llm.TextPart:
				if p.Text == "" {
					continue
				}
				emit.Emit(Event{Type: EventTextDelta, Text: p.Text})
				text.WriteString(p.Text)
				segments = appendText(segments, p.Text)

			case llm.InlineDataPart:
				if p.MIMEType == "" {
					r.log.Debug().Int("bytes", len(p.Data)).Msg("ignoring inline data without mime type")
					continue
				}
				path, err := r.sink.Save(p.Data, p.MIMEType, r.now().Unix())
				if err != nil {
					r.log.Error().Err(err).Str("mime_type", p.MIMEType).Msg("image save failed, turn discarded")
					return nil, fmt.Errorf("failed to save generated image: %w", err)
				}
				emit.Emit(Event{Type: EventImageSaved, Path: path, MIMEType: p.MIMEType})
				segments = append(segments, conversation.ImageSegment{Path: path, MIMEType: p.MIMEType})

			case llm.UnknownPart:
				r.log.Debug().Str("kind", p.Kind).Msg("ignoring unknown part")
			}
		}
	}

	// A producer may close the stream on cancellation without an error event
	if err := ctx.Err(); err != nil {
		r.log.Warn().Err(err).Int("segments", len(segments)).Msg("turn cancelled, turn discarded")
		return nil, &llm.TransportError{Message: "turn cancelled", Err: err}
	}

	if len(segments) == 0 {
		r.log.Warn().Msg("model returned no content")
		segments = []conversation.Segment{conversation.TextSegment{}}
	}
	r.store.AppendModelTurn(segments)

	emit.Emit(Event{Type: EventTurnComplete, Text: text.String()})

	return &Result{Text: text.String(), Segments: segments, Usage: usage}, nil
}

// appendText merges consecutive text into a single trailing segment
func appendText(segments []conversation.Segment, text string) []conversation.Segment {
	if n := len(segments); n > 0 {
		if last, ok := segments[n-1].(conversation.TextSegment); ok {
			segments[n-1] = conversation.TextSegment{Text: last.Text + text}
			return segments
		}
	}
	return append(segments, conversation.TextSegment{Text: text})
}
