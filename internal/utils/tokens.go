package utils

// Token estimation for prompt budgeting. Backends tokenize differently, so
// these are approximations: about four characters per token.

// CountTokens estimates the number of tokens in the given text.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	// Ensure at least 1 token for any non-empty text
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TruncateToTokenLimit cuts text to roughly fit within a token limit. The cut
// falls on the last line break inside the limit when there is one, so a
// Markdown table loses whole rows instead of half a row.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	charLimit := limit * 4
	if charLimit >= len(runes) {
		return text
	}
	cut := runes[:charLimit]
	for i := len(cut) - 1; i > len(cut)/2; i-- {
		if cut[i] == '\n' {
			return string(cut[:i+1])
		}
	}
	return string(cut)
}
