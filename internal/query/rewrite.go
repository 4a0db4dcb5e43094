package query

import (
	"unicode/utf8"

	"github.com/gcbaptista/go-search-service/internal/tokenizer"
)

const (
	// FuzzyMaxEdits is the edit budget of a fuzzy term.
	FuzzyMaxEdits = 1
	// FuzzyMinTermLength is the rune length below which fuzzy terms stay exact.
	FuzzyMinTermLength = 3
)

// SynonymLookup returns every term interchangeable with term, including term itself,
// or nothing when term belongs to no synonym group.
type SynonymLookup interface {
	Expand(term string) []string
}

// ApplyMinimumShouldMatch overrides the threshold of the top-level group. n is
// clamped to [1, number of optional clauses]; zero leaves the query unchanged.
// A top-level OR is turned into a group so the threshold applies to it too.
func ApplyMinimumShouldMatch(n Node, min int) Node {
	if min <= 0 {
		return n
	}
	switch v := n.(type) {
	case *MinimumShouldMatchNode:
		if len(v.Should) > 0 {
			v.Min = clamp(min, 1, len(v.Should))
		}
	case *BooleanNode:
		if v.Op == OpOr {
			return &MinimumShouldMatchNode{Should: v.Clauses, Min: clamp(min, 1, len(v.Clauses))}
		}
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ExpandSynonyms rewrites every plain term whose text belongs to a synonym group into
// an OR of the group's terms. Field scope, boost and position are kept. Expansion is
// one level deep: the terms produced are not expanded again.
func ExpandSynonyms(n Node, synonyms SynonymLookup) Node {
	if synonyms == nil {
		return n
	}
	return rewriteLeaves(n, func(leaf Node) Node {
		t, ok := leaf.(*TermNode)
		if !ok {
			return leaf
		}
		terms := synonyms.Expand(tokenizer.Normalize(t.Text))
		if len(terms) < 2 {
			return leaf
		}
		clauses := make([]Node, 0, len(terms))
		for _, term := range terms {
			clauses = append(clauses, &TermNode{Field: t.Field, Text: term, Boost: t.Boost, Pos: t.Pos})
		}
		return &BooleanNode{Op: OpOr, Clauses: clauses}
	})
}

// Fuzzify turns every plain term of at least FuzzyMinTermLength runes into a fuzzy
// term. Phrases, wildcards and term sets are left exact.
func Fuzzify(n Node) Node {
	return rewriteLeaves(n, func(leaf Node) Node {
		t, ok := leaf.(*TermNode)
		if !ok || utf8.RuneCountInString(t.Text) < FuzzyMinTermLength {
			return leaf
		}
		return &FuzzyNode{Field: t.Field, Text: t.Text, MaxEdits: FuzzyMaxEdits, Boost: t.Boost, Pos: t.Pos}
	})
}

// rewriteLeaves replaces every leaf of n with fn(leaf), rebuilding the containers.
func rewriteLeaves(n Node, fn func(Node) Node) Node {
	switch v := n.(type) {
	case *BooleanNode:
		out := &BooleanNode{Op: v.Op, Clauses: make([]Node, len(v.Clauses))}
		for i, c := range v.Clauses {
			out.Clauses[i] = rewriteLeaves(c, fn)
		}
		return out
	case *MinimumShouldMatchNode:
		return &MinimumShouldMatchNode{
			Must:    rewriteAll(v.Must, fn),
			MustNot: rewriteAll(v.MustNot, fn),
			Should:  rewriteAll(v.Should, fn),
			Min:     v.Min,
		}
	case *FieldScopedGroup:
		return &FieldScopedGroup{Field: v.Field, Node: rewriteLeaves(v.Node, fn)}
	default:
		return fn(n)
	}
}

func rewriteAll(nodes []Node, fn func(Node) Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, c := range nodes {
		out[i] = rewriteLeaves(c, fn)
	}
	return out
}
