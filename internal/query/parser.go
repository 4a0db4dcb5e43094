package query

import (
	"strconv"
	"strings"

	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
)

type occur int

const (
	occurShould occur = iota
	occurMust
	occurMustNot
)

type clause struct {
	node Node
	occ  occur
}

type parser struct {
	scanner
}

// Parse turns a query string into an AST. An empty query, or a bare "*", matches
// every document. Errors are *errors.QuerySyntaxError values carrying the byte
// offset of the problem.
func Parse(input string) (Node, error) {
	if trimmed := strings.TrimSpace(input); trimmed == "" || trimmed == "*" {
		return &MatchAllNode{}, nil
	}

	p := &parser{scanner{input: input}}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		if p.peek() == ')' {
			return nil, internalErrors.NewQuerySyntaxError(p.pos, "unbalanced parenthesis: unexpected ')'")
		}
		return nil, internalErrors.NewQuerySyntaxError(p.pos, "unexpected input %q", p.rest())
	}
	return n, nil
}

func (p *parser) parseOr() (Node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	nodes := []Node{first}
	for {
		p.skipSpace()
		if p.keyword() != "OR" {
			break
		}
		orPos := p.pos
		p.pos += len("OR")
		p.skipSpace()
		if p.eof() || p.peek() == ')' {
			return nil, internalErrors.NewQuerySyntaxError(orPos, "OR without right operand")
		}
		n, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if len(nodes) == 1 {
		return first, nil
	}
	return &BooleanNode{Op: OpOr, Clauses: nodes}, nil
}

func (p *parser) parseAnd() (Node, error) {
	var clauses []clause
	andPos := -1
	for {
		p.skipSpace()
		if p.eof() || p.peek() == ')' {
			break
		}
		kw := p.keyword()
		if kw == "OR" {
			if len(clauses) == 0 {
				return nil, internalErrors.NewQuerySyntaxError(p.pos, "OR without left operand")
			}
			break
		}
		if kw == "AND" {
			if len(clauses) == 0 || andPos >= 0 {
				return nil, internalErrors.NewQuerySyntaxError(p.pos, "AND without left operand")
			}
			andPos = p.pos
			p.pos += len("AND")
			if last := &clauses[len(clauses)-1]; last.occ == occurShould {
				last.occ = occurMust
			}
			continue
		}

		c, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if andPos >= 0 && c.occ == occurShould {
			c.occ = occurMust
		}
		andPos = -1
		clauses = append(clauses, c)
	}

	if andPos >= 0 {
		return nil, internalErrors.NewQuerySyntaxError(andPos, "AND without right operand")
	}
	if len(clauses) == 0 {
		return nil, internalErrors.NewQuerySyntaxError(p.pos, "empty expression")
	}
	if len(clauses) == 1 && clauses[0].occ != occurMustNot {
		return clauses[0].node, nil
	}

	group := &MinimumShouldMatchNode{}
	for _, c := range clauses {
		switch c.occ {
		case occurMust:
			group.Must = append(group.Must, c.node)
		case occurMustNot:
			group.MustNot = append(group.MustNot, c.node)
		default:
			group.Should = append(group.Should, c.node)
		}
	}
	group.Min = len(group.Should)
	return group, nil
}

func (p *parser) parseUnary() (clause, error) {
	start := p.pos
	if c := p.peek(); (c == '-' || c == '+') && p.peekAt(1) != 0 && !isSpace(p.peekAt(1)) {
		p.pos++
		n, err := p.parsePrimary()
		if err != nil {
			return clause{}, err
		}
		if c == '-' {
			return clause{node: n, occ: occurMustNot}, nil
		}
		return clause{node: n, occ: occurMust}, nil
	}

	if p.keyword() == "NOT" {
		p.pos += len("NOT")
		p.skipSpace()
		if p.eof() || p.peek() == ')' {
			return clause{}, internalErrors.NewQuerySyntaxError(start, "NOT without operand")
		}
		c, err := p.parseUnary()
		if err != nil {
			return clause{}, err
		}
		if c.occ == occurMustNot {
			c.occ = occurShould
		} else {
			c.occ = occurMustNot
		}
		return c, nil
	}

	n, err := p.parsePrimary()
	if err != nil {
		return clause{}, err
	}
	return clause{node: n, occ: occurShould}, nil
}

func (p *parser) parsePrimary() (Node, error) {
	p.skipSpace()
	start := p.pos
	switch p.peek() {
	case '(':
		p.pos++
		return p.parseGroupBody(start)
	case ')':
		return nil, internalErrors.NewQuerySyntaxError(start, "unbalanced parenthesis: unexpected ')'")
	case '"':
		return p.parsePhrase("")
	}

	word := p.readWord(false)
	if word == "" {
		return nil, internalErrors.NewQuerySyntaxError(start, "unexpected character %q", p.peek())
	}
	if p.peek() == ':' {
		p.pos++
		return p.parseFieldValue(word, start)
	}
	return leafFromWord("", word, start)
}

// parseGroupBody parses the inside of a parenthesized group whose '(' is at open and
// has already been consumed.
func (p *parser) parseGroupBody(open int) (Node, error) {
	p.skipSpace()
	if p.peek() == ')' {
		return nil, internalErrors.NewQuerySyntaxError(open, "empty group")
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() != ')' {
		return nil, internalErrors.NewQuerySyntaxError(open, "unbalanced parenthesis: missing ')'")
	}
	p.pos++

	boost, err := p.parseBoostSuffix()
	if err != nil {
		return nil, err
	}
	if boost != 1 {
		applyBoost(n, boost)
	}
	return n, nil
}

func (p *parser) parseFieldValue(field string, start int) (Node, error) {
	if field == "_exists_" {
		namePos := p.pos
		name := p.readWord(false)
		if name == "" {
			return nil, internalErrors.NewQuerySyntaxError(namePos, "missing field name after _exists_:")
		}
		return &ExistsNode{Field: name, Pos: namePos}, nil
	}

	if c := p.peek(); c == 0 || isSpace(c) || c == ')' {
		return nil, internalErrors.NewQuerySyntaxError(p.pos, "missing value for field '%s'", field)
	}

	switch {
	case p.peek() == '(':
		open := p.pos
		p.pos++
		n, err := p.parseGroupBody(open)
		if err != nil {
			return nil, err
		}
		return &FieldScopedGroup{Field: field, Node: scopeLeaves(n, field)}, nil
	case strings.HasPrefix(p.rest(), "IN["):
		return p.parseTermSet(field, start)
	case p.peek() == '"':
		return p.parsePhrase(field)
	}

	word := p.readWord(true)
	return leafFromWord(field, word, start)
}

func (p *parser) parsePhrase(field string) (Node, error) {
	start := p.pos
	p.pos++
	end := strings.IndexByte(p.rest(), '"')
	if end < 0 {
		return nil, internalErrors.NewQuerySyntaxError(start, "unterminated phrase: missing closing quote")
	}
	text := p.input[p.pos : p.pos+end]
	p.pos += end + 1

	var slots []PhraseSlot
	for _, w := range strings.Fields(text) {
		switch {
		case strings.HasSuffix(w, ".*") && len(w) > 2:
			slots = append(slots, PhraseSlot{Text: strings.TrimSuffix(w, ".*"), Prefix: true})
		case strings.HasSuffix(w, "*") && len(w) > 1:
			slots = append(slots, PhraseSlot{Text: strings.TrimRight(w, "*"), Prefix: true})
		default:
			slots = append(slots, PhraseSlot{Text: w})
		}
	}
	if len(slots) == 0 {
		return nil, internalErrors.NewQuerySyntaxError(start, "empty phrase")
	}

	boost, err := p.parseBoostSuffix()
	if err != nil {
		return nil, err
	}
	return &PhraseNode{Field: field, Slots: slots, Boost: boost, Pos: start}, nil
}

func (p *parser) parseTermSet(field string, start int) (Node, error) {
	p.pos += len("IN[")
	body := p.pos
	inQuote := false
	end := -1
	for i := body; i < len(p.input); i++ {
		c := p.input[i]
		if c == '"' {
			inQuote = !inQuote
		} else if c == ']' && !inQuote {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, internalErrors.NewQuerySyntaxError(start, "missing ']' in IN list for field '%s'", field)
	}
	p.pos = end + 1

	var values []string
	for _, v := range splitOutsideQuotes(p.input[body:end], ',') {
		v = strings.TrimSpace(v)
		if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
			v = strings.TrimSpace(v[1 : len(v)-1])
		}
		if v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil, internalErrors.NewQuerySyntaxError(start, "empty IN list for field '%s'", field)
	}

	boost, err := p.parseBoostSuffix()
	if err != nil {
		return nil, err
	}
	return &TermSetNode{Field: field, Values: values, Boost: boost, Pos: start}, nil
}

// parseBoostSuffix consumes an optional ^n after a phrase, group or term set.
func (p *parser) parseBoostSuffix() (float64, error) {
	if p.peek() != '^' {
		return 1, nil
	}
	pos := p.pos
	p.pos++
	raw := p.readWord(false)
	return parseBoost(raw, pos)
}

func parseBoost(raw string, pos int) (float64, error) {
	b, err := strconv.ParseFloat(raw, 64)
	if err != nil || b <= 0 {
		return 0, internalErrors.NewQuerySyntaxError(pos, "invalid boost '%s'", raw)
	}
	return b, nil
}

// leafFromWord builds a term or wildcard leaf from a bare word, splitting off a
// trailing ^n boost.
func leafFromWord(field, word string, start int) (Node, error) {
	text := word
	boost := 1.0
	if idx := strings.LastIndexByte(word, '^'); idx >= 0 {
		if idx == 0 {
			return nil, internalErrors.NewQuerySyntaxError(start, "missing term before boost")
		}
		b, err := parseBoost(word[idx+1:], start+idx)
		if err != nil {
			return nil, err
		}
		text, boost = word[:idx], b
	}

	if text == "*" {
		if field == "" {
			return &MatchAllNode{}, nil
		}
		return &ExistsNode{Field: field, Pos: start}, nil
	}
	if strings.HasSuffix(text, "*") {
		return &WildcardNode{Field: field, Prefix: strings.TrimRight(text, "*"), Boost: boost, Pos: start}, nil
	}
	return &TermNode{Field: field, Text: text, Boost: boost, Pos: start}, nil
}

func splitOutsideQuotes(s string, sep byte) []string {
	var parts []string
	inQuote := false
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case sep:
			if !inQuote {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}

// scopeLeaves sets field on every leaf of n that was not scoped explicitly.
func scopeLeaves(n Node, field string) Node {
	switch v := n.(type) {
	case *TermNode:
		if v.Field == "" {
			v.Field = field
		}
	case *FuzzyNode:
		if v.Field == "" {
			v.Field = field
		}
	case *WildcardNode:
		if v.Field == "" {
			v.Field = field
		}
	case *PhraseNode:
		if v.Field == "" {
			v.Field = field
		}
	case *MatchAllNode:
		return &ExistsNode{Field: field, Pos: -1}
	case *BooleanNode:
		for i, c := range v.Clauses {
			v.Clauses[i] = scopeLeaves(c, field)
		}
	case *MinimumShouldMatchNode:
		for i, c := range v.Must {
			v.Must[i] = scopeLeaves(c, field)
		}
		for i, c := range v.MustNot {
			v.MustNot[i] = scopeLeaves(c, field)
		}
		for i, c := range v.Should {
			v.Should[i] = scopeLeaves(c, field)
		}
	case *FieldScopedGroup:
		v.Node = scopeLeaves(v.Node, field)
	}
	return n
}

// applyBoost multiplies the boost of every leaf of n by b.
func applyBoost(n Node, b float64) {
	walkLeaves(n, func(leaf Node) {
		switch v := leaf.(type) {
		case *TermNode:
			v.Boost *= b
		case *FuzzyNode:
			v.Boost *= b
		case *WildcardNode:
			v.Boost *= b
		case *PhraseNode:
			v.Boost *= b
		case *TermSetNode:
			v.Boost *= b
		}
	})
}

// walkLeaves calls fn for every leaf of n.
func walkLeaves(n Node, fn func(Node)) {
	switch v := n.(type) {
	case *BooleanNode:
		for _, c := range v.Clauses {
			walkLeaves(c, fn)
		}
	case *MinimumShouldMatchNode:
		for _, c := range v.Must {
			walkLeaves(c, fn)
		}
		for _, c := range v.MustNot {
			walkLeaves(c, fn)
		}
		for _, c := range v.Should {
			walkLeaves(c, fn)
		}
	case *FieldScopedGroup:
		walkLeaves(v.Node, fn)
	default:
		fn(n)
	}
}
