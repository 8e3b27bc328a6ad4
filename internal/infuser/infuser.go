// Package infuser talks to a language model to produce a documented variant
// of a source file. It purposefully does NOT take advantage of each
// provider's special features: no tools, no reasoning knobs, just text in and
// text out, batch or streamed.
//
// Streamed output is normalized before it reaches the caller: events carry
// cumulative snapshots of the documented text, each snapshot a prefix of the
// next, so consumers can diff and print only what is new.
package infuser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SychAndrii/infusion/internal/llmmodel"
)

// Request describes one file to document.
type Request struct {
	Source      string // full file contents, UTF-8
	DisplayName string // base name shown to the model so it can infer conventions
	Model       llmmodel.ModelID
}

// Usage reports token consumption for one generation. Estimated is true when
// the counts come from a local tokenizer because the provider reported none.
type Usage struct {
	InputTokens  int
	OutputTokens int
	Estimated    bool
}

// Result is the outcome of one successful generation.
type Result struct {
	DocumentedSource string
	Usage            Usage
}

// ErrNotSourceCode reports that the model did not recognize the input as
// source code. Callers treat it as a per-file condition, not a run failure.
var ErrNotSourceCode = errors.New("input not recognized as source code")

type EventType string

const (
	// EventTypeSnapshot carries the cumulative documented text so far.
	EventTypeSnapshot EventType = "snapshot"
	// EventTypeDone ends the stream successfully. Event has Result.
	EventTypeDone EventType = "done"
	// EventTypeError ends the stream with a failure. Event has Err.
	EventTypeError EventType = "error"
)

// eventBuffer sizes stream event channels so producers rarely block on a
// consumer that is busy writing to a slow terminal.
const eventBuffer = 64

// Event is one item of a streamed generation. The channel is closed after a
// done or error event.
type Event struct {
	Type     EventType
	Snapshot string  // cumulative text, only for EventTypeSnapshot
	Result   *Result // only for EventTypeDone
	Err      error   // only for EventTypeError
}

// Service generates documentation-augmented source files.
type Service interface {
	// Generate documents one file in a single round trip.
	Generate(ctx context.Context, req Request) (Result, error)

	// GenerateStream documents one file incrementally. Each snapshot event is
	// a strictly growing prefix of the eventual documented text. The sequence
	// is finite and not restartable.
	GenerateStream(ctx context.Context, req Request) <-chan Event
}

// New returns the Service implementation for model's provider, authenticated
// with apiKey. The key is used for this service only; the process environment
// is left alone.
func New(model llmmodel.ModelID, apiKey string, logger *slog.Logger) (Service, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	switch model.ProviderID() {
	case llmmodel.ProviderIDOpenAI:
		return newOpenAIService(apiKey, logger), nil
	case llmmodel.ProviderIDCohere:
		return newCohereService(apiKey, logger), nil
	default:
		return nil, fmt.Errorf("model %q has no provider implementation", model)
	}
}

// trySendEvent sends ev on out, but fast-fails if ctx is done. Reports if the
// event was sent.
func trySendEvent(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func newErrorEvent(err error) Event {
	return Event{Type: EventTypeError, Err: err}
}
