package infuser

import (
	"context"
	"log/slog"
)

// usageService decorates a Service so every successful batch generation
// reports its token usage on logger. Streamed generations pass through
// untouched: usage reporting is a batch-mode concern.
type usageService struct {
	inner  Service
	logger *slog.Logger
}

var _ Service = (*usageService)(nil)

// WithUsageLogging wraps svc to report token usage after each successful
// Generate call. The choice is made once, at construction; callers never
// toggle reporting per request.
func WithUsageLogging(svc Service, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &usageService{inner: svc, logger: logger}
}

func (s *usageService) Generate(ctx context.Context, req Request) (Result, error) {
	res, err := s.inner.Generate(ctx, req)
	if err != nil {
		return res, err
	}
	args := []any{
		"file", req.DisplayName,
		"model", string(req.Model),
		"input_tokens", res.Usage.InputTokens,
		"output_tokens", res.Usage.OutputTokens,
	}
	if res.Usage.Estimated {
		args = append(args, "estimated", true)
	}
	s.logger.Info("token usage", args...)
	return res, nil
}

func (s *usageService) GenerateStream(ctx context.Context, req Request) <-chan Event {
	return s.inner.GenerateStream(ctx, req)
}
