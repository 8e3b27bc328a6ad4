package infuser

import (
	"github.com/tiktoken-go/tokenizer"
)

// countTokens returns the approximate token count of text. All supported
// models are close enough to the o200k_base encoding for estimates. Falls
// back to a bytes/4 heuristic if the tokenizer is unavailable.
func countTokens(text string) int {
	enc, err := tokenizer.Get(tokenizer.O200kBase)
	if err != nil {
		return len(text) / 4
	}
	count, err := enc.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// requestTokens approximates the prompt size of req in tokens.
func requestTokens(req Request) int {
	return countTokens(documentSystemPrompt()) + countTokens(userPrompt(req))
}

// estimateUsage builds a Usage from local token counts for providers or
// responses that do not report usage themselves.
func estimateUsage(req Request, produced string) Usage {
	return Usage{
		InputTokens:  requestTokens(req),
		OutputTokens: countTokens(produced),
		Estimated:    true,
	}
}
