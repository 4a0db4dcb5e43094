package search

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/gcbaptista/go-search-service/config"
	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
	"github.com/gcbaptista/go-search-service/internal/query"
	"github.com/gcbaptista/go-search-service/internal/tokenizer"
	"github.com/gcbaptista/go-search-service/internal/typoutil"
	"github.com/gcbaptista/go-search-service/model"
	"github.com/gcbaptista/go-search-service/services"
)

const (
	defaultPreTag   = "<em>"
	defaultPostTag  = "</em>"
	defaultMaxChars = 150
	maxSnippets     = 3
	leadingContext  = 4 // a snippet starts maxChars/leadingContext runes before its first match
)

// fieldTerms is the set of query terms that can match tokens of one field.
type fieldTerms struct {
	exact    map[string]bool
	prefixes []string
	fuzzy    []*query.FuzzyQuery
}

func (ft *fieldTerms) matches(token string) bool {
	if ft.exact[token] {
		return true
	}
	for _, p := range ft.prefixes {
		if strings.HasPrefix(token, p) {
			return true
		}
	}
	for _, f := range ft.fuzzy {
		if typoutil.Within(f.Term, token, f.MaxEdits) {
			return true
		}
	}
	return false
}

// collectTerms gathers the positive terms of plan per field. Excluded clauses never
// produce highlights.
func collectTerms(p query.Plan, out map[string]*fieldTerms) {
	get := func(field string) *fieldTerms {
		ft, ok := out[field]
		if !ok {
			ft = &fieldTerms{exact: make(map[string]bool)}
			out[field] = ft
		}
		return ft
	}

	switch q := p.(type) {
	case *query.TermQuery:
		for _, t := range q.Terms {
			get(q.Field).exact[t] = true
		}
	case *query.FuzzyQuery:
		ft := get(q.Field)
		ft.fuzzy = append(ft.fuzzy, q)
	case *query.PrefixQuery:
		ft := get(q.Field)
		ft.prefixes = append(ft.prefixes, q.Prefix)
	case *query.PhraseQuery:
		ft := get(q.Field)
		for _, s := range q.Slots {
			if s.Prefix {
				ft.prefixes = append(ft.prefixes, s.Term)
			} else {
				ft.exact[s.Term] = true
			}
		}
	case *query.TermSetQuery:
		ft := get(q.Field)
		for _, value := range q.Values {
			for _, t := range value {
				ft.exact[t] = true
			}
		}
	case *query.BoolQuery:
		for _, c := range q.Must {
			collectTerms(c, out)
		}
		for _, c := range q.Should {
			collectTerms(c, out)
		}
	}
}

// highlightFields resolves the fields to highlight. Explicit fields must be stored
// text or keyword fields; by default the stored text and keyword fields among
// queryFields are used.
func highlightFields(def *config.IndexDefinition, opts *services.HighlightOptions, queryFields []string) ([]string, error) {
	if len(opts.Fields) > 0 {
		for _, name := range opts.Fields {
			f, ok := def.Field(name)
			if !ok {
				return nil, internalErrors.NewValidationError("highlight.fields", fmt.Sprintf("unknown field '%s'", name))
			}
			if !f.Stored || !(f.Type == model.FieldTypeText || f.Type == model.FieldTypeKeyword) {
				return nil, internalErrors.NewValidationError("highlight.fields", fmt.Sprintf("field '%s' must be a stored text or keyword field", name))
			}
		}
		return opts.Fields, nil
	}

	var fields []string
	for _, name := range queryFields {
		f, ok := def.Field(name)
		if ok && f.Stored && (f.Type == model.FieldTypeText || f.Type == model.FieldTypeKeyword) {
			fields = append(fields, name)
		}
	}
	return fields, nil
}

// highlighter produces snippets with the matched tokens wrapped in markers.
type highlighter struct {
	def      *config.IndexDefinition
	fields   []string
	preTag   string
	postTag  string
	maxChars int
	terms    map[string]*fieldTerms
}

func newHighlighter(def *config.IndexDefinition, fields []string, opts *services.HighlightOptions, plan query.Plan) *highlighter {
	h := &highlighter{
		def:      def,
		fields:   fields,
		preTag:   defaultPreTag,
		postTag:  defaultPostTag,
		maxChars: defaultMaxChars,
		terms:    make(map[string]*fieldTerms),
	}
	if opts.PreTag != "" {
		h.preTag = opts.PreTag
	}
	if opts.PostTag != "" {
		h.postTag = opts.PostTag
	}
	if opts.MaxChars > 0 {
		h.maxChars = opts.MaxChars
	}
	collectTerms(plan, h.terms)
	return h
}

// highlight returns the snippets of doc per field, or nil when nothing matched.
func (h *highlighter) highlight(doc model.Document) map[string][]string {
	var out map[string][]string
	for _, name := range h.fields {
		ft, ok := h.terms[name]
		if !ok {
			continue
		}
		v, ok := doc.Fields[name]
		if !ok {
			continue
		}
		f, _ := h.def.Field(name)

		var snippets []string
		for _, s := range v.Strings() {
			remaining := maxSnippets - len(snippets)
			if remaining == 0 {
				break
			}
			if f.Type == model.FieldTypeKeyword {
				if ft.matches(tokenizer.Normalize(s)) {
					snippets = append(snippets, h.preTag+html.EscapeString(truncateRunes(s, h.maxChars))+h.postTag)
				}
				continue
			}
			snippets = append(snippets, h.snippets(s, ft, remaining)...)
		}
		if len(snippets) > 0 {
			if out == nil {
				out = make(map[string][]string)
			}
			out[name] = snippets
		}
	}
	return out
}

// snippets builds up to limit windows of text, each starting shortly before a match
// not covered by the previous window and spanning maxChars runes, stretched to the
// end of a match that would otherwise be cut.
func (h *highlighter) snippets(text string, ft *fieldTerms, limit int) []string {
	var matched []tokenizer.Token
	for _, tok := range tokenizer.TokenizeWithOffsets(text) {
		if ft.matches(tok.Text) {
			matched = append(matched, tok)
		}
	}

	var out []string
	covered := 0
	for _, tok := range matched {
		if len(out) == limit {
			break
		}
		if tok.Start < covered {
			continue
		}
		start := moveBack(text, tok.Start, h.maxChars/leadingContext)
		if start < covered {
			start = covered
		}
		end := moveForward(text, start, h.maxChars)
		for _, next := range matched {
			// A match crossing the boundary extends the window instead of being cut.
			if next.Start < end && next.End > end {
				end = next.End
			}
		}
		out = append(out, h.render(text, start, end, matched))
		covered = end
	}
	return out
}

// render escapes text[start:end] and wraps every matched token that lies entirely
// inside the window.
func (h *highlighter) render(text string, start, end int, matched []tokenizer.Token) string {
	var b strings.Builder
	cursor := start
	for _, tok := range matched {
		if tok.Start < start || tok.End > end {
			continue
		}
		b.WriteString(html.EscapeString(text[cursor:tok.Start]))
		b.WriteString(h.preTag)
		b.WriteString(html.EscapeString(text[tok.Start:tok.End]))
		b.WriteString(h.postTag)
		cursor = tok.End
	}
	b.WriteString(html.EscapeString(text[cursor:end]))
	return strings.TrimSpace(b.String())
}

// moveBack returns the byte offset n runes before offset.
func moveBack(text string, offset, n int) int {
	for ; n > 0 && offset > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(text[:offset])
		offset -= size
	}
	return offset
}

// moveForward returns the byte offset n runes after offset.
func moveForward(text string, offset, n int) int {
	for ; n > 0 && offset < len(text); n-- {
		_, size := utf8.DecodeRuneInString(text[offset:])
		offset += size
	}
	return offset
}

func truncateRunes(s string, n int) string {
	return s[:moveForward(s, 0, n)]
}
