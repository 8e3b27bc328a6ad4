package infuser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"github.com/cohere-ai/cohere-go/v2/core"
	"github.com/cohere-ai/cohere-go/v2/option"
)

// cohereService implements Service against the Cohere chat API.
type cohereService struct {
	client *cohereclient.Client
	logger *slog.Logger
}

var _ Service = (*cohereService)(nil)

func newCohereService(apiKey string, logger *slog.Logger) *cohereService {
	client := cohereclient.NewClient(
		option.WithToken(apiKey),
		option.WithMaxAttempts(1),
	)
	return &cohereService{client: client, logger: logger}
}

func (s *cohereService) Generate(ctx context.Context, req Request) (Result, error) {
	if s.logger.Enabled(ctx, slog.LevelDebug) {
		s.logger.Debug("sending request",
			"provider", "cohere",
			"model", string(req.Model),
			"file", req.DisplayName,
			"request_tokens", requestTokens(req),
		)
	}

	resp, err := s.client.Chat(ctx, &cohere.ChatRequest{
		Model:    cohere.String(string(req.Model)),
		Preamble: cohere.String(documentSystemPrompt()),
		Message:  userPrompt(req),
	})
	if err != nil {
		return Result{}, describeCohereError(err)
	}
	if resp == nil {
		return Result{}, errors.New("cohere: empty chat response")
	}

	doc, err := normalizeReply(resp.Text)
	if err != nil {
		return Result{}, err
	}

	usage := cohereUsage(resp.Meta)
	if usage == (Usage{}) {
		usage = estimateUsage(req, doc)
	}
	return Result{DocumentedSource: doc, Usage: usage}, nil
}

func (s *cohereService) GenerateStream(ctx context.Context, req Request) <-chan Event {
	out := make(chan Event, eventBuffer)
	go func() {
		defer close(out)

		if s.logger.Enabled(ctx, slog.LevelDebug) {
			s.logger.Debug("sending streaming request",
				"provider", "cohere",
				"model", string(req.Model),
				"file", req.DisplayName,
				"request_tokens", requestTokens(req),
			)
		}

		stream, err := s.client.ChatStream(ctx, &cohere.ChatStreamRequest{
			Model:    cohere.String(string(req.Model)),
			Preamble: cohere.String(documentSystemPrompt()),
			Message:  userPrompt(req),
		})
		if err != nil {
			trySendEvent(ctx, out, newErrorEvent(describeCohereError(err)))
			return
		}
		defer stream.Close()

		var gate replyGate
		var usage Usage
		last := ""
		for {
			msg, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				trySendEvent(ctx, out, newErrorEvent(describeCohereError(err)))
				return
			}
			if msg.StreamEnd != nil && msg.StreamEnd.Response != nil {
				usage = cohereUsage(msg.StreamEnd.Response.Meta)
			}
			if msg.TextGeneration == nil || msg.TextGeneration.Text == "" {
				continue
			}
			gate.push(msg.TextGeneration.Text)

			text, notSource := gate.visible(false)
			if notSource {
				trySendEvent(ctx, out, newErrorEvent(ErrNotSourceCode))
				return
			}
			if text != last {
				last = text
				if !trySendEvent(ctx, out, Event{Type: EventTypeSnapshot, Snapshot: text}) {
					return
				}
			}
		}

		final, notSource := gate.visible(true)
		if notSource || final == "" {
			trySendEvent(ctx, out, newErrorEvent(ErrNotSourceCode))
			return
		}
		if final != last {
			if !trySendEvent(ctx, out, Event{Type: EventTypeSnapshot, Snapshot: final}) {
				return
			}
		}
		if usage == (Usage{}) {
			usage = estimateUsage(req, final)
		}
		trySendEvent(ctx, out, Event{
			Type:   EventTypeDone,
			Result: &Result{DocumentedSource: final, Usage: usage},
		})
	}()
	return out
}

func cohereUsage(meta *cohere.ApiMeta) Usage {
	if meta == nil || meta.Tokens == nil {
		return Usage{}
	}
	var usage Usage
	if meta.Tokens.InputTokens != nil {
		usage.InputTokens = int(*meta.Tokens.InputTokens)
	}
	if meta.Tokens.OutputTokens != nil {
		usage.OutputTokens = int(*meta.Tokens.OutputTokens)
	}
	return usage
}

// describeCohereError surfaces the HTTP status for API-level failures so the
// per-file error line tells the user what actually went wrong.
func describeCohereError(err error) error {
	var apiErr *core.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("cohere request failed (status %d): %w", apiErr.StatusCode, err)
	}
	return fmt.Errorf("cohere request failed: %w", err)
}
