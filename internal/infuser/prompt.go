package infuser

import (
	"fmt"
	"strings"

	"github.com/SychAndrii/infusion/internal/langhint"
)

// documentSystemPrompt returns the system prompt instructing the model to
// return the complete, documented file.
func documentSystemPrompt() string {
	var b strings.Builder

	b.WriteString("You are an expert programmer tasked with adding clean, idiomatic documentation comments to a source file.\n\n")

	b.WriteString("## Rules\n")
	b.WriteString("- Return the COMPLETE file with documentation comments added; never omit, abbreviate, or summarize code.\n")
	b.WriteString("- Use the documentation conventions of the file's language (docstrings for Python, doc comments for Go, JSDoc for JavaScript, and so on).\n")
	b.WriteString("- Do not change the code itself: no renames, no logic changes, no reformatting beyond inserting comments.\n")
	b.WriteString("- Document the *what*, and when it's not otherwise clear, the *why*.\n")
	b.WriteString("- Keep documentation concise and precise.\n")
	b.WriteString("\n")

	b.WriteString("## Output Format\n")
	b.WriteString("- Reply with the raw file content only. Do NOT wrap the reply in markdown code fences.\n")
	b.WriteString("- If the input is not recognizable source code, or breaks its language's syntax so badly it cannot be parsed, reply with exactly " + notSourceCodeSentinel + " and nothing else.\n")

	return b.String()
}

// userPrompt renders the per-file message: the display name, a language hint
// when the extension is recognized, and the full source text.
func userPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "File name: %s\n", req.DisplayName)
	if lang := langhint.ForFile(req.DisplayName); lang != "" {
		fmt.Fprintf(&b, "Language: %s\n", lang)
	}
	b.WriteString("\nSource:\n")
	b.WriteString(req.Source)

	return b.String()
}
