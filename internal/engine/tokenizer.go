package engine

import (
	"strings"
	"unicode/utf8"
)

// Tokenizer provides token counting for text.
type Tokenizer interface {
	CountTokens(text string) int
}

// EstimateTokens provides a rough token count estimation.
// Uses ~4 characters per token for English and code, plus a small whitespace term.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}

	charCount := utf8.RuneCountInString(text)
	whitespaceCount := strings.Count(text, " ") + strings.Count(text, "\n") + strings.Count(text, "\t")

	estimated := (charCount / 4) + (whitespaceCount / 6)
	if estimated < 1 {
		return 1
	}
	return estimated
}

// DefaultTokenizer uses estimation when no model-specific tokenizer is available.
type DefaultTokenizer struct{}

// CountTokens implements Tokenizer using estimation.
func (DefaultTokenizer) CountTokens(text string) int {
	return EstimateTokens(text)
}

// CountTokensForMessages counts tokens for a slice of messages, including
// roughly four tokens of formatting overhead per message.
func CountTokensForMessages(tokenizer Tokenizer, messages []ChatMessage) int {
	total := 0
	for _, msg := range messages {
		total += tokenizer.CountTokens(string(msg.Role))
		total += tokenizer.CountTokens(msg.Content)
		total += 4
	}
	return total
}
