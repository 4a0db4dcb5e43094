// Package rules holds the query-time rules of an index: synonym groups, which widen
// terms, and pinned rules, which move documents to the top of the results.
package rules

import (
	"strings"

	"github.com/gcbaptista/go-search-service/internal/tokenizer"
	"github.com/gcbaptista/go-search-service/model"
)

// RuleSet is an immutable snapshot of the synonym groups and pinned rules of an index.
type RuleSet struct {
	synonyms []model.SynonymGroup
	pinned   []model.PinnedRule

	groupsByTerm map[string][]int // normalized term -> indexes into synonyms
	triggers     [][]string       // normalized queries, per pinned rule
}

// NewRuleSet builds a rule set. The slices are copied.
func NewRuleSet(synonyms []model.SynonymGroup, pinned []model.PinnedRule) *RuleSet {
	r := &RuleSet{
		synonyms:     cloneSynonyms(synonyms),
		pinned:       clonePinned(pinned),
		groupsByTerm: make(map[string][]int),
	}
	for i, g := range r.synonyms {
		for _, term := range g.Terms {
			norm := tokenizer.Normalize(term)
			if norm == "" {
				continue
			}
			r.groupsByTerm[norm] = append(r.groupsByTerm[norm], i)
		}
	}
	for _, rule := range r.pinned {
		var triggers []string
		for _, q := range rule.Queries {
			if norm := normalizeQuery(q); norm != "" {
				triggers = append(triggers, norm)
			}
		}
		r.triggers = append(r.triggers, triggers)
	}
	return r
}

// Expand returns term followed by every other term of the groups that contain it,
// without duplicates, or nil when no group contains term. Groups reached only through
// another synonym are not followed.
func (r *RuleSet) Expand(term string) []string {
	norm := tokenizer.Normalize(term)
	groups := r.groupsByTerm[norm]
	if len(groups) == 0 {
		return nil
	}

	seen := map[string]bool{norm: true}
	out := []string{norm}
	for _, gi := range groups {
		for _, t := range r.synonyms[gi].Terms {
			t = tokenizer.Normalize(t)
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// PinnedIDs returns the document ids of the first pinned rule, in storage order, that
// has a trigger contained in query. Matching ignores case and collapses whitespace.
func (r *RuleSet) PinnedIDs(query string) []string {
	norm := normalizeQuery(query)
	if norm == "" {
		return nil
	}
	for i, triggers := range r.triggers {
		for _, trigger := range triggers {
			if strings.Contains(norm, trigger) {
				return r.pinned[i].DocumentIDs
			}
		}
	}
	return nil
}

// Synonyms returns a copy of the synonym groups.
func (r *RuleSet) Synonyms() []model.SynonymGroup {
	return cloneSynonyms(r.synonyms)
}

// Pinned returns a copy of the pinned rules.
func (r *RuleSet) Pinned() []model.PinnedRule {
	return clonePinned(r.pinned)
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// ApplyPinned moves the hits whose id is in ids to the front, in the order of ids.
// Ids that are not among hits are ignored and every other hit keeps its relative
// order. hits is not modified.
func ApplyPinned[T any](hits []T, ids []string, idOf func(T) string) []T {
	if len(ids) == 0 || len(hits) == 0 {
		return hits
	}

	byID := make(map[string]int, len(hits))
	for i, h := range hits {
		byID[idOf(h)] = i
	}

	out := make([]T, 0, len(hits))
	moved := make(map[int]bool, len(ids))
	for _, id := range ids {
		if i, ok := byID[id]; ok && !moved[i] {
			out = append(out, hits[i])
			moved[i] = true
		}
	}
	if len(moved) == 0 {
		return hits
	}
	for i, h := range hits {
		if !moved[i] {
			out = append(out, h)
		}
	}
	return out
}

func cloneSynonyms(in []model.SynonymGroup) []model.SynonymGroup {
	out := make([]model.SynonymGroup, len(in))
	for i, g := range in {
		out[i] = model.SynonymGroup{Terms: append([]string(nil), g.Terms...)}
	}
	return out
}

func clonePinned(in []model.PinnedRule) []model.PinnedRule {
	out := make([]model.PinnedRule, len(in))
	for i, r := range in {
		out[i] = model.PinnedRule{
			Queries:     append([]string(nil), r.Queries...),
			DocumentIDs: append([]string(nil), r.DocumentIDs...),
		}
	}
	return out
}
