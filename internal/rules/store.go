package rules

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
	"github.com/gcbaptista/go-search-service/model"
)

// Persister saves the rules of an index.
type Persister interface {
	SaveSynonyms(indexName string, groups []model.SynonymGroup) error
	SavePinned(indexName string, rules []model.PinnedRule) error
}

// Store owns the rules of one index. Readers take the current RuleSet without
// locking; writers are serialized, persist the new rules and then swap the set.
type Store struct {
	indexName string
	persister Persister

	mu      sync.Mutex
	closed  bool // guarded by mu
	current atomic.Pointer[RuleSet]
}

// NewStore creates a store holding the given initial rules. persister may be nil for
// rules that only live in memory.
func NewStore(indexName string, synonyms []model.SynonymGroup, pinned []model.PinnedRule, persister Persister) *Store {
	s := &Store{indexName: indexName, persister: persister}
	s.current.Store(NewRuleSet(synonyms, pinned))
	return s
}

// Current returns the current rule set.
func (s *Store) Current() *RuleSet {
	return s.current.Load()
}

// Close waits for the current writer and rejects every later write with an
// IndexNotFoundError. Readers keep the last rule set.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// SetSynonyms replaces every synonym group.
func (s *Store) SetSynonyms(groups []model.SynonymGroup) error {
	if err := validateSynonyms(groups); err != nil {
		return err
	}
	return s.updateSynonyms(func([]model.SynonymGroup) []model.SynonymGroup { return groups })
}

// AddSynonyms appends synonym groups to the existing ones.
func (s *Store) AddSynonyms(groups []model.SynonymGroup) error {
	if err := validateSynonyms(groups); err != nil {
		return err
	}
	return s.updateSynonyms(func(existing []model.SynonymGroup) []model.SynonymGroup {
		return append(existing, groups...)
	})
}

// ClearSynonyms removes every synonym group.
func (s *Store) ClearSynonyms() error {
	return s.updateSynonyms(func([]model.SynonymGroup) []model.SynonymGroup { return nil })
}

// SetPinnedRules replaces every pinned rule.
func (s *Store) SetPinnedRules(rules []model.PinnedRule) error {
	if err := validatePinned(rules); err != nil {
		return err
	}
	return s.updatePinned(func([]model.PinnedRule) []model.PinnedRule { return rules })
}

// AddPinnedRules appends pinned rules after the existing ones.
func (s *Store) AddPinnedRules(rules []model.PinnedRule) error {
	if err := validatePinned(rules); err != nil {
		return err
	}
	return s.updatePinned(func(existing []model.PinnedRule) []model.PinnedRule {
		return append(existing, rules...)
	})
}

// ClearPinnedRules removes every pinned rule.
func (s *Store) ClearPinnedRules() error {
	return s.updatePinned(func([]model.PinnedRule) []model.PinnedRule { return nil })
}

func (s *Store) updateSynonyms(fn func([]model.SynonymGroup) []model.SynonymGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return internalErrors.NewIndexNotFoundError(s.indexName)
	}

	cur := s.current.Load()
	next := NewRuleSet(fn(cur.Synonyms()), cur.pinned)
	if s.persister != nil {
		if err := s.persister.SaveSynonyms(s.indexName, next.synonyms); err != nil {
			return internalErrors.NewEngineError(s.indexName, "save synonyms", err)
		}
	}
	s.current.Store(next)
	return nil
}

func (s *Store) updatePinned(fn func([]model.PinnedRule) []model.PinnedRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return internalErrors.NewIndexNotFoundError(s.indexName)
	}

	cur := s.current.Load()
	next := NewRuleSet(cur.synonyms, fn(cur.Pinned()))
	if s.persister != nil {
		if err := s.persister.SavePinned(s.indexName, next.pinned); err != nil {
			return internalErrors.NewEngineError(s.indexName, "save pinned rules", err)
		}
	}
	s.current.Store(next)
	return nil
}

func validateSynonyms(groups []model.SynonymGroup) error {
	if len(groups) == 0 {
		return internalErrors.NewValidationError("synonyms", "at least one synonym group is required")
	}
	for i, g := range groups {
		terms := 0
		for _, t := range g.Terms {
			if strings.TrimSpace(t) != "" {
				terms++
			}
		}
		if terms < 2 {
			return internalErrors.NewValidationError(fmt.Sprintf("synonyms[%d].terms", i), "a synonym group needs at least two non-empty terms")
		}
	}
	return nil
}

func validatePinned(rules []model.PinnedRule) error {
	if len(rules) == 0 {
		return internalErrors.NewValidationError("pinned", "at least one pinned rule is required")
	}
	for i, r := range rules {
		if !hasNonBlank(r.Queries) {
			return internalErrors.NewValidationError(fmt.Sprintf("pinned[%d].queries", i), "a pinned rule needs at least one non-empty query")
		}
		if !hasNonBlank(r.DocumentIDs) {
			return internalErrors.NewValidationError(fmt.Sprintf("pinned[%d].document_ids", i), "a pinned rule needs at least one document id")
		}
	}
	return nil
}

func hasNonBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}
