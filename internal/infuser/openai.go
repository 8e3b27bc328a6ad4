package infuser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

// openAIService implements Service against the OpenAI chat completions API.
type openAIService struct {
	client openai.Client
	logger *slog.Logger
}

var _ Service = (*openAIService)(nil)

func newOpenAIService(apiKey string, logger *slog.Logger) *openAIService {
	// No automatic retries: a failure surfaces once, immediately.
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)
	return &openAIService{client: client, logger: logger}
}

func (s *openAIService) params(req Request) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: openai.ChatModel(string(req.Model)),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(documentSystemPrompt()),
			openai.UserMessage(userPrompt(req)),
		},
	}
}

func (s *openAIService) Generate(ctx context.Context, req Request) (Result, error) {
	if s.logger.Enabled(ctx, slog.LevelDebug) {
		s.logger.Debug("sending request",
			"provider", "openai",
			"model", string(req.Model),
			"file", req.DisplayName,
			"request_tokens", requestTokens(req),
		)
	}

	resp, err := s.client.Chat.Completions.New(ctx, s.params(req))
	if err != nil {
		return Result{}, describeOpenAIError(err)
	}
	if resp == nil || len(resp.Choices) != 1 {
		return Result{}, errors.New("openai: unexpected completion shape")
	}

	text := resp.Choices[0].Message.Content
	if text == "" {
		text = resp.Choices[0].Message.Refusal
	}
	doc, err := normalizeReply(text)
	if err != nil {
		return Result{}, err
	}

	usage := Usage{
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}
	if usage == (Usage{}) {
		usage = estimateUsage(req, doc)
	}
	return Result{DocumentedSource: doc, Usage: usage}, nil
}

func (s *openAIService) GenerateStream(ctx context.Context, req Request) <-chan Event {
	out := make(chan Event, eventBuffer)
	go func() {
		defer close(out)

		if s.logger.Enabled(ctx, slog.LevelDebug) {
			s.logger.Debug("sending streaming request",
				"provider", "openai",
				"model", string(req.Model),
				"file", req.DisplayName,
				"request_tokens", requestTokens(req),
			)
		}

		params := s.params(req)
		params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: param.NewOpt(true),
		}

		stream := s.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		var gate replyGate
		var usage Usage
		last := ""
		for stream.Next() {
			chunk := stream.Current()
			if chunk.Usage.TotalTokens > 0 {
				usage = Usage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
				}
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			gate.push(chunk.Choices[0].Delta.Content)

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
		if err := stream.Err(); err != nil {
			trySendEvent(ctx, out, newErrorEvent(describeOpenAIError(err)))
			return
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

// describeOpenAIError surfaces the HTTP status for API-level failures so the
// per-file error line tells the user what actually went wrong.
func describeOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai request failed (status %d): %w", apiErr.StatusCode, err)
	}
	return fmt.Errorf("openai request failed: %w", err)
}
