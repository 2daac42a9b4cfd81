package conversation

import (
	"errors"
	"sync"
)

// ErrAlreadySeeded is returned when Seed is called on a non-empty store
var ErrAlreadySeeded = errors.New("conversation already seeded")

// DefaultPersonaPrompt primes the model at session start
const DefaultPersonaPrompt = "You are a helpful assistant that can answer questions and generate images."

// DefaultPersonaAck is the model's scripted reply to the persona prompt
const DefaultPersonaAck = "I'm a helpful assistant powered by Google's Gemini model. I can answer questions and generate images based on your requests. How can I help you today?"

// Store is the append-only transcript of one chat session.
//
// Turns are copied on the way in and on the way out, so a Turn is
// immutable once appended. The store expects a single writer; the mutex
// only makes concurrent reads from a presentation layer safe.
type Store struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{turns: make([]Turn, 0, 8)}
}

// Seed appends the priming user/model pair. It must be the first mutation.
func (s *Store) Seed(personaPrompt, personaAck string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.turns) > 0 {
		return ErrAlreadySeeded
	}

	s.turns = append(s.turns,
		Turn{Role: RoleUser, Segments: []Segment{TextSegment{Text: personaPrompt}}},
		Turn{Role: RoleModel, Segments: []Segment{TextSegment{Text: personaAck}}},
	)
	return nil
}

// AppendUserTurn appends a single-text user turn
func (s *Store) AppendUserTurn(text string) {
	s.append(Turn{Role: RoleUser, Segments: []Segment{TextSegment{Text: text}}})
}

// AppendModelTurn appends a completed model response
func (s *Store) AppendModelTurn(segments []Segment) {
	s.append(Turn{Role: RoleModel, Segments: copySegments(segments)})
}

// Snapshot returns the full transcript in insertion order
func (s *Store) Snapshot() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Turn, len(s.turns))
	for i, t := range s.turns {
		out[i] = Turn{Role: t.Role, Segments: copySegments(t.Segments)}
	}
	return out
}

// Len returns the number of turns
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

func (s *Store) append(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
}

func copySegments(in []Segment) []Segment {
	out := make([]Segment, len(in))
	copy(out, in)
	return out
}
