package infuser

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// notSourceCodeSentinel is the exact token the model is instructed to reply
// with when the input is not source code.
const notSourceCodeSentinel = "NOT_SOURCE_CODE"

// normalizeReply cleans a complete (non-streamed) model reply: outer
// whitespace is trimmed, a reply wrapped in a single markdown code fence is
// unwrapped, and the not-source-code sentinel is detected. The returned text
// always ends with a newline.
func normalizeReply(reply string) (string, error) {
	text := strings.TrimSpace(reply)
	if code, ok := extractLoneFence(text); ok {
		text = strings.TrimSpace(code)
	}
	if text == "" || isSentinelReply(text) {
		return "", ErrNotSourceCode
	}
	return text + "\n", nil
}

// extractLoneFence returns the contents of src's markdown code fence when the
// entire reply is exactly one fenced block, which models sometimes produce
// despite instructions. ok is false when src is anything else.
func extractLoneFence(src string) (string, bool) {
	source := []byte(src)
	root := goldmark.New().Parser().Parse(gmtext.NewReader(source))
	if root == nil || root.ChildCount() != 1 {
		return "", false
	}
	fcb, ok := root.FirstChild().(*ast.FencedCodeBlock)
	if !ok {
		return "", false
	}
	lines := fcb.Lines()
	var b strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if seg.Start < 0 || seg.Stop < seg.Start || seg.Stop > len(source) {
			continue
		}
		b.Write(source[seg.Start:seg.Stop])
	}
	return b.String(), true
}

// isSentinelReply reports whether text is the not-source-code sentinel,
// allowing trailing punctuation or whitespace but not an identifier that
// merely starts with the sentinel's characters.
func isSentinelReply(text string) bool {
	if !strings.HasPrefix(text, notSourceCodeSentinel) {
		return false
	}
	rest := text[len(notSourceCodeSentinel):]
	return rest == "" || !isWordByte(rest[0])
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// replyGate incrementally normalizes a streamed reply. It withholds text that
// may still turn out to be the sentinel or a markdown fence delimiter, and
// strips fence lines once confirmed, so that every released snapshot is a
// prefix of the final documented text.
type replyGate struct {
	raw strings.Builder
}

func (g *replyGate) push(chunk string) {
	g.raw.WriteString(chunk)
}

// visible returns the cumulative text that is safe to show so far. final
// indicates the stream has ended, which releases text held back as a
// potential fence or sentinel. notSource reports that the sentinel was
// confirmed; text is empty in that case.
func (g *replyGate) visible(final bool) (text string, notSource bool) {
	s := strings.TrimLeft(g.raw.String(), " \t\r\n")

	body := s
	fenced := false
	openLen := 0
	switch n := leadingBackticks(s); {
	case n == 0:
	case n >= 3:
		// Opening fence. Hold everything until its info line completes,
		// then drop the line.
		nl := strings.IndexByte(s, '\n')
		if nl < 0 {
			return "", false
		}
		body = strings.TrimLeft(s[nl+1:], "\r\n")
		fenced = true
		openLen = n
	case n == len(s):
		// One or two backticks and nothing else: may still grow into an
		// opening fence.
		if !final {
			return "", false
		}
	}

	if strings.HasPrefix(body, notSourceCodeSentinel) {
		rest := body[len(notSourceCodeSentinel):]
		switch {
		case rest == "":
			if final {
				return "", true
			}
			// Could still grow into an identifier; hold.
			return "", false
		case !isWordByte(rest[0]):
			return "", true
		}
	} else if !final && strings.HasPrefix(notSourceCodeSentinel, body) {
		// body is a proper prefix of the sentinel; hold.
		return "", false
	}

	if !fenced {
		return body, false
	}
	return fenceInterior(body, openLen, final), false
}

// fenceInterior returns the portion of body (the text after an opening fence
// line of openLen backticks) that is confirmed content: complete lines up to
// a closing fence line, plus the partial last line unless it may still become
// a closing fence.
func fenceInterior(body string, openLen int, final bool) string {
	var out strings.Builder
	rest := body
	for {
		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			break
		}
		if closesFence(rest[:nl], openLen) {
			// Closing fence: everything beyond it is discarded.
			return out.String()
		}
		out.WriteString(rest[:nl+1])
		rest = rest[nl+1:]
	}
	switch {
	case rest == "":
	case final:
		if !closesFence(rest, openLen) {
			out.WriteString(rest)
		}
	case allBackticks(rest) || closesFence(rest, openLen):
		// May still complete into the closing fence: hold.
	default:
		out.WriteString(rest)
	}
	return out.String()
}

// closesFence reports whether line (without its newline) closes a fence
// opened by openLen backticks: at least openLen backticks and nothing but
// trailing whitespace, per the markdown rule that a closing fence is never
// shorter than its opener.
func closesFence(line string, openLen int) bool {
	trimmed := strings.TrimRight(line, " \t\r")
	return len(trimmed) >= openLen && allBackticks(trimmed)
}

func allBackticks(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '`' {
			return false
		}
	}
	return true
}

func leadingBackticks(s string) int {
	n := 0
	for n < len(s) && s[n] == '`' {
		n++
	}
	return n
}
