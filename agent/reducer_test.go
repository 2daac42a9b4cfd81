package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nachoal/gemini-chat-go/conversation"
	"github.com/nachoal/gemini-chat-go/imagesink"
	"github.com/nachoal/gemini-chat-go/llm"
)

type recordingSink struct {
	calls int
	err   error
}

func (s *recordingSink) Save(data []byte, mimeType string, clockSeconds int64) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return filepath.Join("out", "image_"+mimeType), nil
}

func streamOf(events ...llm.StreamEvent) <-chan llm.StreamEvent {
	ch := make(chan llm.StreamEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func partsChunk(parts ...llm.Part) llm.StreamEvent {
	return llm.StreamEvent{Chunk: &llm.ResponseChunk{Candidates: []llm.Candidate{{
		Content: &llm.Content{Role: llm.RoleModel, Parts: parts},
	}}}}
}

func textPart(s string) llm.Part { return llm.TextPart{Text: s} }

func imagePart(data, mimeType string) llm.Part {
	return llm.InlineDataPart{MIMEType: mimeType, Data: []byte(data)}
}

func metadataOnlyChunks() []llm.StreamEvent {
	return []llm.StreamEvent{
		{Chunk: &llm.ResponseChunk{}},
		{Chunk: &llm.ResponseChunk{Candidates: []llm.Candidate{{FinishReason: "STOP"}}}},
		{Chunk: &llm.ResponseChunk{Candidates: []llm.Candidate{{Content: &llm.Content{Role: llm.RoleModel}}}}},
		{Chunk: &llm.ResponseChunk{Usage: &llm.Usage{TotalTokens: 3}}},
	}
}

func recordEvents() (*[]Event, Emitter) {
	var events []Event
	return &events, EmitterFunc(func(ev Event) { events = append(events, ev) })
}

func fixedClock(sec int64) func() time.Time {
	return func() time.Time { return time.Unix(sec, 0) }
}

func TestReduce_MetadataOnlyChunks(t *testing.T) {
	store := conversation.NewStore()
	sink := &recordingSink{}
	r := NewReducer(store, sink, nil, zerolog.Nop())

	events, emit := recordEvents()
	result, err := r.Reduce(context.Background(), streamOf(metadataOnlyChunks()...), emit)
	require.NoError(t, err)

	assert.Equal(t, 0, sink.calls)
	assert.Equal(t, []Event{{Type: EventTurnComplete, Text: ""}}, *events)
	assert.Equal(t, "", result.Text)
	turns := store.Snapshot()
	require.Len(t, turns, 1)
	assert.Equal(t, conversation.RoleModel, turns[0].Role)
	assert.Equal(t, []conversation.Segment{conversation.TextSegment{}}, turns[0].Segments)
	require.NotNil(t, result.Usage)
	assert.Equal(t, 3, result.Usage.TotalTokens)
}

func TestReduce_MergesConsecutiveText(t *testing.T) {
	store := conversation.NewStore()
	r := NewReducer(store, &recordingSink{}, nil, zerolog.Nop())

	result, err := r.Reduce(context.Background(), streamOf(
		partsChunk(textPart("Hel"), textPart("lo")),
		partsChunk(textPart(", "), textPart("")),
		partsChunk(textPart("world")),
	), nil)
	require.NoError(t, err)

	assert.Equal(t, []conversation.Segment{conversation.TextSegment{Text: "Hello, world"}}, result.Segments)
	turns := store.Snapshot()
	require.Len(t, turns, 1)
	assert.Equal(t, conversation.RoleModel, turns[0].Role)
	assert.Equal(t, result.Segments, turns[0].Segments)
}

func TestReduce_PreservesArrivalOrder(t *testing.T) {
	store := conversation.NewStore()
	sink := imagesink.New(t.TempDir())
	r := NewReducer(store, sink, fixedClock(1700000000), zerolog.Nop())

	events, emit := recordEvents()
	result, err := r.Reduce(context.Background(), streamOf(
		partsChunk(textPart("A")),
		partsChunk(imagePart("bytes1", "image/png")),
		partsChunk(textPart("B")),
	), emit)
	require.NoError(t, err)

	path1 := filepath.Join(sink.Dir(), "image_1700000000.png")
	assert.Equal(t, []conversation.Segment{
		conversation.TextSegment{Text: "A"},
		conversation.ImageSegment{Path: path1, MIMEType: "image/png"},
		conversation.TextSegment{Text: "B"},
	}, result.Segments)

	assert.Equal(t, []Event{
		{Type: EventTextDelta, Text: "A"},
		{Type: EventImageSaved, Path: path1, MIMEType: "image/png"},
		{Type: EventTextDelta, Text: "B"},
		{Type: EventTurnComplete, Text: "AB"},
	}, *events)

	data, err := os.ReadFile(path1)
	require.NoError(t, err)
	assert.Equal(t, "bytes1", string(data))
}

func TestReduce_SkippedChunksDoNotMutateState(t *testing.T) {
	store := conversation.NewStore()
	r := NewReducer(store, &recordingSink{}, nil, zerolog.Nop())

	stream := append([]llm.StreamEvent{partsChunk(textPart("A"))}, metadataOnlyChunks()...)
	stream = append(stream, llm.StreamEvent{Chunk: nil}, partsChunk(textPart("B")))

	result, err := r.Reduce(context.Background(), streamOf(stream...), nil)
	require.NoError(t, err)
	assert.Equal(t, "AB", result.Text)
	assert.Equal(t, []conversation.Segment{conversation.TextSegment{Text: "AB"}}, result.Segments)
	assert.Equal(t, 1, store.Len())
}

func TestReduce_IgnoresUnknownParts(t *testing.T) {
	store := conversation.NewStore()
	sink := &recordingSink{}
	r := NewReducer(store, sink, nil, zerolog.Nop())

	events, emit := recordEvents()
	_, err := r.Reduce(context.Background(), streamOf(
		partsChunk(llm.UnknownPart{Kind: "executableCode"}, textPart("ok")),
	), emit)
	require.NoError(t, err)
	assert.Equal(t, 0, sink.calls)
	assert.Equal(t, []Event{
		{Type: EventTextDelta, Text: "ok"},
		{Type: EventTurnComplete, Text: "ok"},
	}, *events)
}

func TestReduce_TransportFailureKeepsSavedImages(t *testing.T) {
	store := conversation.NewStore()
	require.NoError(t, store.Seed("prime", "ack"))
	sink := imagesink.New(t.TempDir())
	r := NewReducer(store, sink, fixedClock(5), zerolog.Nop())

	boom := &llm.TransportError{Message: "connection reset"}
	events, emit := recordEvents()
	_, err := r.Reduce(context.Background(), streamOf(
		partsChunk(textPart("Here")),
		partsChunk(imagePart("img", "image/png")),
		llm.StreamEvent{Err: boom},
	), emit)

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, store.Len())
	assert.FileExists(t, filepath.Join(sink.Dir(), "image_5.png"))
	for _, ev := range *events {
		assert.NotEqual(t, EventTurnComplete, ev.Type)
	}
}

func TestReduce_ImageSaveFailureAborts(t *testing.T) {
	store := conversation.NewStore()
	ioErr := &imagesink.IOError{Op: "write", Path: "x", Err: errors.New("disk full")}
	r := NewReducer(store, &recordingSink{err: ioErr}, nil, zerolog.Nop())

	events, emit := recordEvents()
	_, err := r.Reduce(context.Background(), streamOf(
		partsChunk(textPart("A"), imagePart("img", "image/png"), textPart("never")),
	), emit)

	var got *imagesink.IOError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, []Event{{Type: EventTextDelta, Text: "A"}}, *events)
}

func TestReduce_UsesWallClockSeconds(t *testing.T) {
	sink := imagesink.New(t.TempDir())
	r := NewReducer(conversation.NewStore(), sink, fixedClock(1234), zerolog.Nop())

	result, err := r.Reduce(context.Background(), streamOf(partsChunk(imagePart("img", "application/x-unknown"))), nil)
	require.NoError(t, err)
	require.Len(t, result.Images(), 1)
	assert.Equal(t, "image_1234.png", filepath.Base(result.Images()[0].Path))
}

func TestReduce_IgnoresInlineDataWithoutMIMEType(t *testing.T) {
	store := conversation.NewStore()
	sink := &recordingSink{}
	r := NewReducer(store, sink, nil, zerolog.Nop())

	events, emit := recordEvents()
	result, err := r.Reduce(context.Background(), streamOf(
		partsChunk(imagePart("\x89PNG\r\n\x1a\n", ""), textPart("caption")),
	), emit)
	require.NoError(t, err)

	assert.Equal(t, 0, sink.calls)
	assert.Empty(t, result.Images())
	assert.Equal(t, []Event{
		{Type: EventTextDelta, Text: "caption"},
		{Type: EventTurnComplete, Text: "caption"},
	}, *events)
}

func TestReduce_CancelledContextDiscardsTurn(t *testing.T) {
	store := conversation.NewStore()
	r := NewReducer(store, &recordingSink{}, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The stream closes without an error event, as a producer that gives up on ctx
	events, emit := recordEvents()
	_, err := r.Reduce(ctx, streamOf(partsChunk(textPart("partial"))), emit)

	require.ErrorIs(t, err, context.Canceled)
	var te *llm.TransportError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, 0, store.Len())
	for _, ev := range *events {
		assert.NotEqual(t, EventTurnComplete, ev.Type)
	}
}
