package search

import (
	"fmt"
	"sort"
	"time"

	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
	"github.com/gcbaptista/go-search-service/internal/tokenizer"
	"github.com/gcbaptista/go-search-service/model"
)

const (
	defaultSuggestLimit = 10
	maxSuggestLimit     = 100
)

// Suggest returns indexed terms starting with the request prefix, the most frequent
// first. Without a field every indexed text and keyword field is consulted.
func (s *Service) Suggest(req model.SuggestRequest) (model.SuggestResponse, error) {
	startTime := time.Now()
	snap := s.engine.Snapshot()
	def := snap.Definition()

	prefix := tokenizer.Normalize(req.Prefix)
	if prefix == "" {
		return model.SuggestResponse{}, internalErrors.NewValidationError("prefix", "prefix cannot be empty")
	}

	limit := req.Limit
	switch {
	case limit < 0:
		return model.SuggestResponse{}, internalErrors.NewValidationError("limit", "limit cannot be negative")
	case limit == 0:
		limit = defaultSuggestLimit
	case limit > maxSuggestLimit:
		limit = maxSuggestLimit
	}

	var fields []string
	if req.Field != "" {
		f, ok := def.Field(req.Field)
		if !ok {
			return model.SuggestResponse{}, internalErrors.NewValidationError("field", fmt.Sprintf("unknown field '%s'", req.Field))
		}
		if !f.Indexed || !(f.Type == model.FieldTypeText || f.Type == model.FieldTypeKeyword) {
			return model.SuggestResponse{}, internalErrors.NewValidationError("field", fmt.Sprintf("field '%s' must be an indexed text or keyword field", req.Field))
		}
		fields = []string{req.Field}
	} else {
		for _, f := range def.Fields {
			if f.Indexed && (f.Type == model.FieldTypeText || f.Type == model.FieldTypeKeyword) {
				fields = append(fields, f.Name)
			}
		}
	}

	freq := make(map[string]int)
	for _, field := range fields {
		for _, term := range snap.Terms(field, prefix) {
			freq[term] += snap.DocFreq(field, term)
		}
	}

	suggestions := make([]string, 0, len(freq))
	for term := range freq {
		suggestions = append(suggestions, term)
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if freq[suggestions[i]] != freq[suggestions[j]] {
			return freq[suggestions[i]] > freq[suggestions[j]]
		}
		return suggestions[i] < suggestions[j]
	})
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}

	return model.SuggestResponse{
		Suggestions: suggestions,
		TookMs:      time.Since(startTime).Milliseconds(),
	}, nil
}
