package agent

// EventType represents the type of display event
type EventType string

const (
	EventTextDelta    EventType = "text_delta"
	EventImageSaved   EventType = "image_saved"
	EventTurnComplete EventType = "turn_complete"
	EventError        EventType = "error"
)

// Event is one display update produced while a model turn is reduced.
// TextDelta carries Text; ImageSaved carries Path and MIMEType;
// TurnComplete carries the accumulated Text; Error carries Err.
type Event struct {
	Type     EventType
	Text     string
	Path     string
	MIMEType string
	Err      error
}

// Emitter receives display events in the order they are produced
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to the Emitter interface
type EmitterFunc func(Event)

// Emit calls f(ev)
func (f EmitterFunc) Emit(ev Event) {
	f(ev)
}

// ChannelEmitter forwards events into a channel so a worker goroutine never
// touches presentation state directly. Emit blocks while the channel is full.
type ChannelEmitter chan<- Event

// Emit sends ev on the channel
func (c ChannelEmitter) Emit(ev Event) {
	c <- ev
}

type discardEmitter struct{}

func (discardEmitter) Emit(Event) {}

// Discard is an Emitter that drops every event
var Discard Emitter = discardEmitter{}
