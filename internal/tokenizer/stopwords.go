package tokenizer

// stopwords holds English and Norwegian question and function words. They are only
// removed when a query matched nothing and is retried as a keyword query.
var stopwords = map[string]struct{}{
	// Norwegian
	"hva": {}, "hvem": {}, "hvor": {}, "hvilken": {}, "hvilke": {}, "hvordan": {}, "når": {}, "hvorfor": {},
	"er": {}, "var": {}, "bli": {}, "blir": {}, "være": {},
	"og": {}, "eller": {}, "for": {}, "av": {}, "til": {}, "med": {}, "i": {}, "på": {}, "om": {}, "som": {},
	"en": {}, "et": {}, "den": {}, "det": {}, "de": {}, "du": {}, "jeg": {}, "vi": {}, "oss": {},
	// English
	"what": {}, "who": {}, "where": {}, "which": {}, "how": {}, "when": {}, "why": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "the": {}, "a": {}, "an": {}, "of": {}, "to": {},
	"in": {}, "on": {}, "and": {}, "or": {}, "do": {}, "does": {}, "can": {},
}

// IsStopword reports whether the lowercase token is a stop word.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// KeywordsOnly tokenizes text and drops stop words and single-character tokens.
func KeywordsOnly(text string) []string {
	var keywords []string
	for _, tok := range Tokenize(text) {
		if len([]rune(tok)) <= 1 || IsStopword(tok) {
			continue
		}
		keywords = append(keywords, tok)
	}
	return keywords
}
