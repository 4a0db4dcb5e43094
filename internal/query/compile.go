package query

import (
	"strings"

	"github.com/gcbaptista/go-search-service/config"
	"github.com/gcbaptista/go-search-service/index"
	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
	"github.com/gcbaptista/go-search-service/internal/tokenizer"
	"github.com/gcbaptista/go-search-service/model"
)

// Options are the request-level settings that shape compilation.
type Options struct {
	Fields             []string           // default fields for unscoped leaves
	Boost              map[string]float64 // per-field score multiplier
	Fuzzy              bool
	MinimumShouldMatch int
	Synonyms           SynonymLookup
}

// Query is a compiled query. Root is the rewritten AST the plan was bound from.
type Query struct {
	Root Node
	Plan Plan
}

// Compile parses input, applies the rewrites selected by opts and binds the result to
// def. It either returns a complete plan or an error; a query is never partially
// compiled.
func Compile(input string, def *config.IndexDefinition, opts Options) (*Query, error) {
	root, err := Parse(input)
	if err != nil {
		return nil, err
	}
	root = ApplyMinimumShouldMatch(root, opts.MinimumShouldMatch)
	root = ExpandSynonyms(root, opts.Synonyms)
	if opts.Fuzzy {
		root = Fuzzify(root)
	}

	b, err := newBinder(def, opts)
	if err != nil {
		return nil, err
	}
	plan, err := b.bind(root)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		plan = &MatchNoneQuery{}
	}
	return &Query{Root: root, Plan: plan}, nil
}

type binder struct {
	def      *config.IndexDefinition
	defaults []config.FieldDefinition
	boost    map[string]float64
}

func newBinder(def *config.IndexDefinition, opts Options) (*binder, error) {
	b := &binder{def: def, boost: opts.Boost}

	names := opts.Fields
	if len(names) == 0 {
		names = def.DefaultSearchFields()
	}
	for _, name := range names {
		f, ok := def.Field(name)
		if !ok {
			return nil, internalErrors.NewQuerySyntaxError(-1, "unknown field '%s' in fields option", name)
		}
		if !f.Indexed {
			return nil, internalErrors.NewQuerySyntaxError(-1, "field '%s' in fields option is not indexed", name)
		}
		b.defaults = append(b.defaults, f)
	}

	for name, v := range opts.Boost {
		if _, ok := def.Field(name); !ok {
			return nil, internalErrors.NewQuerySyntaxError(-1, "unknown field '%s' in boost option", name)
		}
		if v <= 0 {
			return nil, internalErrors.NewQuerySyntaxError(-1, "boost for field '%s' must be positive", name)
		}
	}
	return b, nil
}

// bind returns a nil plan for a leaf whose literal analyzes to no terms, such as
// punctuation; containers drop such clauses.
func (b *binder) bind(n Node) (Plan, error) {
	switch v := n.(type) {
	case *MatchAllNode:
		return &MatchAllQuery{}, nil

	case *FieldScopedGroup:
		return b.bind(v.Node)

	case *ExistsNode:
		if _, ok := b.def.Field(v.Field); !ok {
			return nil, internalErrors.NewQuerySyntaxError(v.Pos, "unknown field '%s' in _exists_", v.Field)
		}
		return &ExistsQuery{Field: v.Field}, nil

	case *BooleanNode:
		plans, err := b.bindAll(v.Clauses)
		if err != nil {
			return nil, err
		}
		switch {
		case len(plans) == 0:
			return nil, nil
		case len(plans) == 1:
			return plans[0], nil
		case v.Op == OpAnd:
			return &BoolQuery{Must: plans}, nil
		default:
			return &BoolQuery{Should: plans, MinShould: 1}, nil
		}

	case *MinimumShouldMatchNode:
		must, err := b.bindAll(v.Must)
		if err != nil {
			return nil, err
		}
		mustNot, err := b.bindAll(v.MustNot)
		if err != nil {
			return nil, err
		}
		should, err := b.bindAll(v.Should)
		if err != nil {
			return nil, err
		}
		min := v.Min
		if min > len(should) {
			min = len(should)
		}
		if len(must) == 0 && len(should) == 0 && len(mustNot) == 0 {
			return nil, nil
		}
		if len(must) == 0 && len(mustNot) == 0 && len(should) == 1 {
			return should[0], nil
		}
		return &BoolQuery{Must: must, MustNot: mustNot, Should: should, MinShould: min}, nil
	}

	return b.bindLeaf(n)
}

func (b *binder) bindAll(nodes []Node) ([]Plan, error) {
	var plans []Plan
	for _, n := range nodes {
		p, err := b.bind(n)
		if err != nil {
			return nil, err
		}
		if p != nil {
			plans = append(plans, p)
		}
	}
	return plans, nil
}

func leafField(n Node) (string, int) {
	switch v := n.(type) {
	case *TermNode:
		return v.Field, v.Pos
	case *FuzzyNode:
		return v.Field, v.Pos
	case *WildcardNode:
		return v.Field, v.Pos
	case *PhraseNode:
		return v.Field, v.Pos
	case *TermSetNode:
		return v.Field, v.Pos
	}
	return "", -1
}

// bindLeaf binds a leaf to its explicit field or to every default field. A literal
// that cannot be parsed for a default field is skipped for that field; for an
// explicit field it is a syntax error.
func (b *binder) bindLeaf(n Node) (Plan, error) {
	name, pos := leafField(n)
	fields := b.defaults
	explicit := name != ""
	if explicit {
		f, ok := b.def.Field(name)
		if !ok {
			return nil, internalErrors.NewQuerySyntaxError(pos, "unknown field '%s'", name)
		}
		if !f.Indexed {
			return nil, internalErrors.NewQuerySyntaxError(pos, "field '%s' is not indexed", name)
		}
		fields = []config.FieldDefinition{f}
	}

	var plans []Plan
	for _, f := range fields {
		p, err := b.leafFor(f, n)
		if err != nil {
			if explicit {
				return nil, internalErrors.NewQuerySyntaxError(pos, "%v", err)
			}
			continue
		}
		if p != nil {
			plans = append(plans, p)
		}
	}

	switch len(plans) {
	case 0:
		return nil, nil
	case 1:
		return plans[0], nil
	}
	return &BoolQuery{Should: plans, MinShould: 1}, nil
}

func (b *binder) fieldBoost(f config.FieldDefinition, leafBoost float64) float64 {
	if leafBoost <= 0 {
		leafBoost = 1
	}
	if fb, ok := b.boost[f.Name]; ok && fb > 0 {
		return leafBoost * fb
	}
	return leafBoost
}

func (b *binder) leafFor(f config.FieldDefinition, n Node) (Plan, error) {
	switch v := n.(type) {
	case *TermNode:
		return termPlan(f, v.Text, b.fieldBoost(f, v.Boost))

	case *FuzzyNode:
		boost := b.fieldBoost(f, v.Boost)
		if !f.Type.IsTextual() {
			return termPlan(f, v.Text, boost)
		}
		terms, _ := index.AnalyzeQuery(f, v.Text)
		switch len(terms) {
		case 0:
			return nil, nil
		case 1:
			return &FuzzyQuery{Field: f.Name, Term: terms[0], MaxEdits: v.MaxEdits, Boost: boost}, nil
		}
		return &TermQuery{Field: f.Name, Terms: terms, Boost: boost}, nil

	case *WildcardNode:
		return prefixPlan(f, v.Prefix, b.fieldBoost(f, v.Boost)), nil

	case *PhraseNode:
		return phrasePlan(f, v.Slots, b.fieldBoost(f, v.Boost))

	case *TermSetNode:
		q := &TermSetQuery{Field: f.Name, Boost: b.fieldBoost(f, v.Boost)}
		for _, value := range v.Values {
			terms, err := index.AnalyzeQuery(f, value)
			if err != nil {
				return nil, err
			}
			if len(terms) > 0 {
				q.Values = append(q.Values, terms)
			}
		}
		if len(q.Values) == 0 {
			return nil, nil
		}
		return q, nil
	}
	return nil, nil
}

func termPlan(f config.FieldDefinition, literal string, boost float64) (Plan, error) {
	terms, err := index.AnalyzeQuery(f, literal)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, nil
	}
	return &TermQuery{Field: f.Name, Terms: terms, Boost: boost}, nil
}

func prefixPlan(f config.FieldDefinition, prefix string, boost float64) Plan {
	switch f.Type {
	case model.FieldTypeText, model.FieldTypeJSON:
		toks := tokenizer.Tokenize(prefix)
		switch len(toks) {
		case 0:
			return nil
		case 1:
			return &PrefixQuery{Field: f.Name, Prefix: toks[0], Boost: boost}
		}
		slots := make([]Slot, len(toks))
		for i, tok := range toks {
			slots[i] = Slot{Term: tok}
		}
		slots[len(slots)-1].Prefix = true
		return &PhraseQuery{Field: f.Name, Slots: slots, Boost: boost}
	case model.FieldTypeKeyword:
		norm := tokenizer.Normalize(prefix)
		if norm == "" {
			return nil
		}
		return &PrefixQuery{Field: f.Name, Prefix: norm, Boost: boost}
	}
	if prefix == "" {
		return nil
	}
	return &PrefixQuery{Field: f.Name, Prefix: prefix, Boost: boost}
}

func phrasePlan(f config.FieldDefinition, slots []PhraseSlot, boost float64) (Plan, error) {
	if f.Type == model.FieldTypeText || f.Type == model.FieldTypeJSON {
		var out []Slot
		for _, s := range slots {
			toks := tokenizer.Tokenize(s.Text)
			for i, tok := range toks {
				out = append(out, Slot{Term: tok, Prefix: s.Prefix && i == len(toks)-1})
			}
		}
		if len(out) == 0 {
			return nil, nil
		}
		if len(out) == 1 && !out[0].Prefix {
			return &TermQuery{Field: f.Name, Terms: []string{out[0].Term}, Boost: boost}, nil
		}
		return &PhraseQuery{Field: f.Name, Slots: out, Boost: boost}, nil
	}

	words := make([]string, len(slots))
	for i, s := range slots {
		words[i] = s.Text
	}
	joined := strings.Join(words, " ")
	if f.Type == model.FieldTypeKeyword && slots[len(slots)-1].Prefix {
		return prefixPlan(f, joined, boost), nil
	}
	return termPlan(f, joined, boost)
}
