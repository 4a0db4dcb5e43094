package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxTokenLength is the longest token, in bytes, that is kept. Longer tokens are
// usually hashes or encoded blobs and are dropped.
const MaxTokenLength = 40

// Token is a single normalized token with the byte range it was read from.
type Token struct {
	Text     string
	Start    int
	End      int
	Position int
}

// Tokenize converts a string into a slice of lowercase tokens.
// Tokens are maximal runs of letters and digits; everything else separates them.
func Tokenize(text string) []string {
	tokens := TokenizeWithOffsets(text)
	result := make([]string, len(tokens)) // Initialize as empty slice, not nil
	for i, tok := range tokens {
		result[i] = tok.Text
	}
	return result
}

// TokenizeWithOffsets is like Tokenize but keeps the byte offsets of every token in
// the original text, which the highlighter needs to place markers.
func TokenizeWithOffsets(text string) []Token {
	tokens := make([]Token, 0)
	start := -1
	position := 0

	flush := func(end int) {
		if start < 0 {
			return
		}
		raw := text[start:end]
		start = -1
		if len(raw) > MaxTokenLength {
			return
		}
		tokens = append(tokens, Token{Text: strings.ToLower(raw), Start: end - len(raw), End: end, Position: position})
		position++
	}

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
		} else {
			flush(i)
		}
		i += size
	}
	flush(len(text))

	return tokens
}

// Normalize lowercases and trims a keyword value. Keywords are never split.
func Normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
