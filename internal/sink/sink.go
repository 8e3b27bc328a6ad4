// Package sink routes documented output to its destination: a file inside
// the output directory, or the console under a per-file header rule.
package sink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const (
	defaultRuleWidth = 80
	maxRuleWidth     = 120
)

var (
	ruleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")) // gray
	nameStyle = lipgloss.NewStyle().Bold(true)
)

// Sink writes documented sources. With Dir set, each file lands under its
// original's base name inside Dir; otherwise output goes to Console.
type Sink struct {
	Dir     string
	Console io.Writer
	Width   int // console width; 0 means detect
}

// Write delivers one complete documented file. It returns the destination
// path when writing into Dir, or "" for console output. An existing file at
// the destination is overwritten.
func (s *Sink) Write(originalPath, documented string) (string, error) {
	if s.Dir != "" {
		dest := filepath.Join(s.Dir, filepath.Base(originalPath))
		if err := os.WriteFile(dest, []byte(documented), 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", dest, err)
		}
		return dest, nil
	}
	if err := s.Header(originalPath); err != nil {
		return "", err
	}
	if err := s.Delta(documented); err != nil {
		return "", err
	}
	return "", s.Finish(documented)
}

// Header prints the rule introducing one file's console output. The label is
// the path as the user gave it, not just the base name.
func (s *Sink) Header(originalPath string) error {
	label := " " + originalPath + " "

	width := s.Width
	if width <= 0 {
		width = detectTerminalWidth(s.Console)
	}
	if width <= 0 {
		width = defaultRuleWidth
	}
	if width > maxRuleWidth {
		width = maxRuleWidth
	}

	line := ruleStyle.Render("──") + nameStyle.Render(label)
	if tail := width - 2 - runewidth.StringWidth(label); tail > 0 {
		line += ruleStyle.Render(strings.Repeat("─", tail))
	}
	_, err := fmt.Fprintln(s.Console, line)
	return err
}

// Delta prints one increment of streamed output, verbatim.
func (s *Sink) Delta(text string) error {
	_, err := io.WriteString(s.Console, text)
	return err
}

// Finish ends one file's console output, adding a newline when documented did
// not end with one so the next header starts on its own line.
func (s *Sink) Finish(documented string) error {
	if strings.HasSuffix(documented, "\n") {
		return nil
	}
	_, err := io.WriteString(s.Console, "\n")
	return err
}

func detectTerminalWidth(out io.Writer) int {
	if outFile, ok := out.(*os.File); ok && outFile != nil {
		fd := int(outFile.Fd())
		if term.IsTerminal(fd) {
			if w, _, err := term.GetSize(fd); err == nil && w > 0 {
				return w
			}
		}
	}
	if cols := strings.TrimSpace(os.Getenv("COLUMNS")); cols != "" {
		if n, err := strconv.Atoi(cols); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
