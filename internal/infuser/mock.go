package infuser

import (
	"context"
	"fmt"
	"strings"
)

// MockScript scripts one canned MockService behavior.
type MockScript struct {
	Reply     string   // complete documented text returned by Generate
	Snapshots []string // cumulative snapshots emitted by GenerateStream; the last is the final text
	Err       error    // returned by Generate, or emitted after Snapshots by GenerateStream
	Usage     Usage
}

// MockService replies from a keyword table: the first script whose keyword
// occurs in the request's source or display name is used. It exists so tests
// can drive the pipeline without network access.
type MockService struct {
	Scripts  map[string]MockScript
	Requests []Request // every request received, in order
}

var _ Service = (*MockService)(nil)

func (m *MockService) find(req Request) (MockScript, error) {
	for keyword, script := range m.Scripts {
		if strings.Contains(req.Source, keyword) || strings.Contains(req.DisplayName, keyword) {
			return script, nil
		}
	}
	return MockScript{}, fmt.Errorf("no mock script matches %q", req.DisplayName)
}

func (m *MockService) Generate(ctx context.Context, req Request) (Result, error) {
	m.Requests = append(m.Requests, req)
	script, err := m.find(req)
	if err != nil {
		return Result{}, err
	}
	if script.Err != nil {
		return Result{}, script.Err
	}
	return Result{DocumentedSource: script.Reply, Usage: script.Usage}, nil
}

func (m *MockService) GenerateStream(ctx context.Context, req Request) <-chan Event {
	m.Requests = append(m.Requests, req)
	script, err := m.find(req)

	out := make(chan Event, len(script.Snapshots)+2)
	go func() {
		defer close(out)
		if err != nil {
			trySendEvent(ctx, out, newErrorEvent(err))
			return
		}
		for _, snap := range script.Snapshots {
			if !trySendEvent(ctx, out, Event{Type: EventTypeSnapshot, Snapshot: snap}) {
				return
			}
		}
		if script.Err != nil {
			trySendEvent(ctx, out, newErrorEvent(script.Err))
			return
		}
		final := script.Reply
		if len(script.Snapshots) > 0 {
			final = script.Snapshots[len(script.Snapshots)-1]
		}
		trySendEvent(ctx, out, Event{
			Type:   EventTypeDone,
			Result: &Result{DocumentedSource: final, Usage: script.Usage},
		})
	}()
	return out
}
