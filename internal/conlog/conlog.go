// Package conlog renders leveled log output for the console in infusion's
// traditional color scheme: informational text in blue on stdout, warnings in
// yellow and errors in red on stderr, debug detail in orange on stderr.
//
// It is a slog.Handler so components can log through *slog.Logger values
// without knowing about colors or stream routing.
package conlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	debugStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))          // orange
	infoStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")) // blue
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")) // yellow
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")) // red
	attrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))            // gray
)

// Handler writes human-oriented log lines. Info goes to out; debug, warn and
// error go to errOut, keeping stdout clean for program output.
type Handler struct {
	mu     *sync.Mutex
	out    io.Writer
	errOut io.Writer
	level  slog.Leveler
	attrs  []slog.Attr // keys already group-qualified
	groups []string
}

// NewHandler returns a Handler routing info to out and everything else to
// errOut, dropping records below level.
func NewHandler(out, errOut io.Writer, level slog.Leveler) *Handler {
	return &Handler{
		mu:     &sync.Mutex{},
		out:    out,
		errOut: errOut,
		level:  level,
	}
}

// New returns a *slog.Logger backed by a Handler. verbose lowers the level
// to debug.
func New(out, errOut io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(NewHandler(out, errOut, level))
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, rec slog.Record) error {
	style := infoStyle
	w := h.out
	switch {
	case rec.Level < slog.LevelInfo:
		style, w = debugStyle, h.errOut
	case rec.Level >= slog.LevelError:
		style, w = errorStyle, h.errOut
	case rec.Level >= slog.LevelWarn:
		style, w = warnStyle, h.errOut
	}

	var b strings.Builder
	b.WriteString(style.Render(rec.Message))
	for _, a := range h.attrs {
		appendAttr(&b, a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, h.qualify(a))
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(w, b.String())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		h2.attrs = append(h2.attrs, h.qualify(a))
	}
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(append([]string(nil), h.groups...), name)
	return &h2
}

func (h *Handler) qualify(a slog.Attr) slog.Attr {
	if len(h.groups) > 0 && a.Key != "" {
		a.Key = strings.Join(h.groups, ".") + "." + a.Key
	}
	return a
}

func appendAttr(b *strings.Builder, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	val := a.Value.String()
	if strings.ContainsAny(val, " \t\"=") {
		val = fmt.Sprintf("%q", val)
	}
	b.WriteByte(' ')
	b.WriteString(attrStyle.Render(a.Key + "=" + val))
}

var _ slog.Handler = (*Handler)(nil)
