// Package llm - util.go provides shared utilities for LLM response processing.
package llm

import "strings"

// CleanCodeBlock removes a Markdown code fence around a response.
// Models often wrap CSV in ```csv ... ``` blocks even when instructed not to.
// Text without a leading fence is only trimmed.
func CleanCodeBlock(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	// Drop the language identifier line (```csv, ```text, ...)
	if idx := strings.Index(text, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(text[:idx])
		if len(firstLine) < 20 && !strings.ContainsAny(firstLine, " ,") {
			text = text[idx+1:]
		}
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
