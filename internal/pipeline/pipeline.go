// Package pipeline runs the per-file documentation loop: read the file, ask
// the model, deliver the result, strictly one file at a time. A file's
// failure is logged and counted; it never aborts the remaining files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/SychAndrii/infusion/internal/infuser"
	"github.com/SychAndrii/infusion/internal/llmmodel"
)

// Output receives documented text. *sink.Sink satisfies it.
type Output interface {
	// Write delivers one complete documented file; dest is the written path,
	// or "" for console output.
	Write(originalPath, documented string) (dest string, err error)
	// Header introduces one file's console output.
	Header(originalPath string) error
	// Delta appends one increment of streamed output.
	Delta(text string) error
	// Finish ends one file's console output; documented is the text written
	// so far.
	Finish(documented string) error
}

// Pipeline documents files in the order given.
type Pipeline struct {
	Service infuser.Service
	Output  Output
	Logger  *slog.Logger
	Model   llmmodel.ModelID
	Stream  bool
}

// Run processes every file and reports how many failed. It stops early only
// when ctx is canceled, returning the context's error.
func (p *Pipeline) Run(ctx context.Context, files []string) (failed int, err error) {
	if p.Logger == nil {
		p.Logger = slog.New(slog.DiscardHandler)
	}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return failed, err
		}
		if err := p.processFile(ctx, file); err != nil {
			if ctx.Err() != nil {
				return failed, ctx.Err()
			}
			failed++
			p.Logger.Error("file failed", "file", file, "error", err)
		}
	}
	return failed, nil
}

func (p *Pipeline) processFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if !utf8.Valid(data) {
		return errors.New("not valid UTF-8 text")
	}

	req := infuser.Request{
		Source:      string(data),
		DisplayName: filepath.Base(path),
		Model:       p.Model,
	}
	if p.Stream {
		return p.streamFile(ctx, path, req)
	}
	return p.generateFile(ctx, path, req)
}

func (p *Pipeline) generateFile(ctx context.Context, path string, req infuser.Request) error {
	p.Logger.Debug("documenting", "file", path, "model", string(req.Model))

	res, err := p.Service.Generate(ctx, req)
	if err != nil {
		return err
	}
	if strings.TrimSpace(res.DocumentedSource) == "" {
		return infuser.ErrNotSourceCode
	}

	dest, err := p.Output.Write(path, res.DocumentedSource)
	if err != nil {
		return err
	}
	if dest != "" {
		p.Logger.Info("documented", "file", path, "output", dest)
	}
	return nil
}

func (p *Pipeline) streamFile(ctx context.Context, path string, req infuser.Request) error {
	// Child context so an abandoned provider goroutine unblocks promptly once
	// this file is done.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.Logger.Debug("documenting", "file", path, "model", string(req.Model), "stream", true)

	if err := p.Output.Header(path); err != nil {
		return err
	}

	written := ""
	defer func() {
		if written != "" {
			_ = p.Output.Finish(written)
		}
	}()

	for ev := range p.Service.GenerateStream(ctx, req) {
		switch ev.Type {
		case infuser.EventTypeSnapshot:
			delta, err := diffSnapshot(written, ev.Snapshot)
			if err != nil {
				return err
			}
			if delta == "" {
				continue
			}
			if err := p.Output.Delta(delta); err != nil {
				return err
			}
			written = ev.Snapshot

		case infuser.EventTypeDone:
			if ev.Result == nil {
				return errors.New("stream ended without a result")
			}
			delta, err := diffSnapshot(written, ev.Result.DocumentedSource)
			if err != nil {
				return err
			}
			if delta != "" {
				if err := p.Output.Delta(delta); err != nil {
					return err
				}
				written = ev.Result.DocumentedSource
			}
			if strings.TrimSpace(written) == "" {
				return infuser.ErrNotSourceCode
			}
			return nil

		case infuser.EventTypeError:
			return ev.Err
		}
	}
	return errors.New("stream closed without done or error")
}

// diffSnapshot returns what next adds over prev. Snapshots that do not extend
// their predecessor violate the service contract for this file.
func diffSnapshot(prev, next string) (string, error) {
	if !strings.HasPrefix(next, prev) {
		return "", errors.New("stream produced non-cumulative output")
	}
	return next[len(prev):], nil
}
