package query

import "strings"

// scanner walks the query string byte by byte. All delimiters are ASCII, so
// multi-byte runes are carried through words untouched.
type scanner struct {
	input string
	pos   int
}

func (s *scanner) eof() bool { return s.pos >= len(s.input) }

func (s *scanner) peek() byte {
	if s.eof() {
		return 0
	}
	return s.input[s.pos]
}

func (s *scanner) peekAt(offset int) byte {
	if s.pos+offset >= len(s.input) {
		return 0
	}
	return s.input[s.pos+offset]
}

func (s *scanner) rest() string { return s.input[s.pos:] }

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func (s *scanner) skipSpace() {
	for !s.eof() && isSpace(s.input[s.pos]) {
		s.pos++
	}
}

// isDelimiter reports whether c ends a bare word. A colon only ends a word when it
// may introduce a field value.
func isDelimiter(c byte, allowColon bool) bool {
	switch {
	case isSpace(c), c == '(', c == ')', c == '"':
		return true
	case c == ':':
		return !allowColon
	}
	return false
}

// readWord consumes a bare word.
func (s *scanner) readWord(allowColon bool) string {
	start := s.pos
	for !s.eof() && !isDelimiter(s.input[s.pos], allowColon) {
		s.pos++
	}
	return s.input[start:s.pos]
}

// keyword returns AND, OR or NOT when the scanner is positioned on one of them as a
// standalone word, or an empty string.
func (s *scanner) keyword() string {
	for _, kw := range [...]string{"AND", "OR", "NOT"} {
		if !strings.HasPrefix(s.rest(), kw) {
			continue
		}
		next := s.peekAt(len(kw))
		if next == 0 || isSpace(next) || next == '(' || next == '"' {
			return kw
		}
	}
	return ""
}
