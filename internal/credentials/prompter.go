package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// TerminalPrompter reads a secret from In without echo when In is a terminal.
// Off-terminal (pipes, tests) it falls back to reading a single line. The
// prompt label is written to Out so stdout stays reserved for program output.
type TerminalPrompter struct {
	In  io.Reader // defaults to os.Stdin
	Out io.Writer // defaults to os.Stderr
}

func (p *TerminalPrompter) PromptSecret(label string) (string, error) {
	in := p.In
	if in == nil {
		in = os.Stdin
	}
	out := p.Out
	if out == nil {
		out = os.Stderr
	}

	fmt.Fprintf(out, "%s: ", label)
	if f, ok := in.(*os.File); ok {
		fd := int(f.Fd())
		if term.IsTerminal(fd) {
			secret, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			if err != nil {
				return "", fmt.Errorf("read secret: %w", err)
			}
			return strings.TrimSpace(string(secret)), nil
		}
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}

var _ Prompter = (*TerminalPrompter)(nil)
