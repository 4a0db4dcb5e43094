package query

import (
	"strings"

	"github.com/gcbaptista/go-search-service/internal/tokenizer"
)

// queryOperators are the characters that give a query structure. Queries using any of
// them are never simplified.
const queryOperators = `:()"[]*^+-`

// FallbackQuery strips stopwords and single-character tokens from a plain natural
// language query, for a second attempt when the original matched nothing. ok is false
// when the query uses operators or when nothing would change.
func FallbackQuery(input string) (string, bool) {
	if strings.ContainsAny(input, queryOperators) {
		return "", false
	}
	for _, w := range strings.Fields(input) {
		if w == "AND" || w == "OR" || w == "NOT" {
			return "", false
		}
	}

	keywords := tokenizer.KeywordsOnly(input)
	if len(keywords) == 0 {
		return "", false
	}
	fallback := strings.Join(keywords, " ")
	if fallback == strings.Join(tokenizer.Tokenize(input), " ") {
		return "", false
	}
	return fallback, true
}
