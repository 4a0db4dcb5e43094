package engine

import (
	"context"

	"github.com/gcbaptista/go-search-service/model"
)

// Synonyms returns the synonym groups of the index.
func (i *IndexInstance) Synonyms() []model.SynonymGroup {
	return i.rules.Current().Synonyms()
}

// SetSynonyms replaces every synonym group.
func (i *IndexInstance) SetSynonyms(ctx context.Context, groups []model.SynonymGroup) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return i.rules.SetSynonyms(groups)
}

// AddSynonyms appends synonym groups to the existing ones.
func (i *IndexInstance) AddSynonyms(ctx context.Context, groups []model.SynonymGroup) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return i.rules.AddSynonyms(groups)
}

// ClearSynonyms removes every synonym group.
func (i *IndexInstance) ClearSynonyms(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return i.rules.ClearSynonyms()
}

// PinnedRules returns the pinned rules of the index, in evaluation order.
func (i *IndexInstance) PinnedRules() []model.PinnedRule {
	return i.rules.Current().Pinned()
}

// SetPinnedRules replaces every pinned rule.
func (i *IndexInstance) SetPinnedRules(ctx context.Context, rules []model.PinnedRule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return i.rules.SetPinnedRules(rules)
}

// AddPinnedRules appends pinned rules after the existing ones.
func (i *IndexInstance) AddPinnedRules(ctx context.Context, rules []model.PinnedRule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return i.rules.AddPinnedRules(rules)
}

// ClearPinnedRules removes every pinned rule.
func (i *IndexInstance) ClearPinnedRules(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return i.rules.ClearPinnedRules()
}
