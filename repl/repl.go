package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nachoal/gemini-chat-go/agent"
)

// Sender runs one chat turn
type Sender interface {
	Send(ctx context.Context, text string, emit agent.Emitter) (*agent.Result, error)
}

// REPL is the line-oriented console front end
type REPL struct {
	session Sender
	in      *bufio.Reader
	out     io.Writer
	log     zerolog.Logger
}

// Option configures a REPL
type Option func(*REPL)

// WithLogger sets the REPL logger
func WithLogger(l zerolog.Logger) Option {
	return func(r *REPL) {
		r.log = l
	}
}

// New creates a REPL reading user lines from in and writing to out
func New(session Sender, in io.Reader, out io.Writer, opts ...Option) *REPL {
	r := &REPL{
		session: session,
		in:      bufio.NewReader(in),
		out:     out,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads messages until exit, quit, EOF or ctx cancellation. A failed
// turn is printed inline and the loop continues.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, "Chatbot ready! Type 'exit' to quit.")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(r.out, "\nYou: ")
		line, readErr := r.in.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("failed to read input: %w", readErr)
		}

		input := strings.TrimSpace(line)
		if isExit(input) {
			return nil
		}
		if input != "" {
			fmt.Fprint(r.out, "\nGemini: ")
			if _, err := r.session.Send(ctx, input, Printer(r.out)); err != nil {
				r.log.Debug().Err(err).Msg("turn failed")
			}
		}

		if errors.Is(readErr, io.EOF) {
			fmt.Fprintln(r.out)
			return nil
		}
	}
}

// Printer writes display events to out as they arrive
func Printer(out io.Writer) agent.Emitter {
	return agent.EmitterFunc(func(ev agent.Event) {
		switch ev.Type {
		case agent.EventTextDelta:
			fmt.Fprint(out, ev.Text)
		case agent.EventImageSaved:
			fmt.Fprintf(out, "\n[Image generated: %s]\n", ev.Path)
		case agent.EventTurnComplete:
			fmt.Fprintln(out)
		case agent.EventError:
			fmt.Fprintf(out, "\nError: %v\n", ev.Err)
		}
	})
}

func isExit(input string) bool {
	switch strings.ToLower(input) {
	case "exit", "quit":
		return true
	}
	return false
}
