// Package search runs ranked queries against one index: it compiles the query, scores
// the matches and applies fallback, sorting, pinning, aggregations, pagination and
// highlighting.
package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gcbaptista/go-search-service/config"
	"github.com/gcbaptista/go-search-service/index"
	"github.com/gcbaptista/go-search-service/internal/aggregation"
	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
	"github.com/gcbaptista/go-search-service/internal/metrics"
	"github.com/gcbaptista/go-search-service/internal/query"
	"github.com/gcbaptista/go-search-service/internal/rules"
	"github.com/gcbaptista/go-search-service/services"
)

// Service implements the search logic for a single index.
type Service struct {
	engine *index.Engine
	rules  *rules.Store
	logger *zap.Logger
}

// NewService creates a new search Service.
func NewService(engine *index.Engine, ruleStore *rules.Store, logger *zap.Logger) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("index engine cannot be nil")
	}
	if ruleStore == nil {
		return nil, fmt.Errorf("rule store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{engine: engine, rules: ruleStore, logger: logger}, nil
}

// Search runs req against the latest committed snapshot.
func (s *Service) Search(ctx context.Context, req services.SearchRequest) (services.SearchResult, error) {
	startTime := time.Now()
	snap := s.engine.Snapshot()
	def := snap.Definition()
	ruleSet := s.rules.Current()

	limit, err := resolveLimit(req.Limit)
	if err != nil {
		return services.SearchResult{}, err
	}
	if req.Offset < 0 {
		return services.SearchResult{}, internalErrors.NewValidationError("offset", "offset cannot be negative")
	}
	if req.Sort != nil {
		if err := validateSort(def, *req.Sort); err != nil {
			return services.SearchResult{}, err
		}
	}
	if err := aggregation.Validate(def, req.Aggregations); err != nil {
		return services.SearchResult{}, err
	}
	var hlFields []string
	if req.Highlight.IsEnabled() {
		queryFields := req.Fields
		if len(queryFields) == 0 {
			queryFields = def.DefaultSearchFields()
		}
		if hlFields, err = highlightFields(def, req.Highlight, queryFields); err != nil {
			return services.SearchResult{}, err
		}
	}

	// Pinning follows the query as typed, not its expansion.
	pinned := ruleSet.PinnedIDs(req.Query)

	opts := query.Options{
		Fields:             req.Fields,
		Boost:              req.Boost,
		Fuzzy:              req.Fuzzy,
		MinimumShouldMatch: req.MinimumShouldMatch,
		Synonyms:           ruleSet,
	}
	compiled, err := query.Compile(req.Query, def, opts)
	if err != nil {
		return services.SearchResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return services.SearchResult{}, cancelled(err)
	}

	m := newMatcher(snap)
	hits := m.execute(compiled.Plan)

	result := services.SearchResult{
		QueryID: uuid.New().String(),
		Offset:  req.Offset,
		Limit:   limit,
	}

	if len(hits) == 0 {
		if fallback, ok := query.FallbackQuery(req.Query); ok {
			if fq, err := query.Compile(fallback, def, opts); err == nil {
				if fallbackHits := m.execute(fq.Plan); len(fallbackHits) > 0 {
					s.logger.Debug("Using stopword fallback query",
						zap.String("index", def.Name),
						zap.String("query", req.Query),
						zap.String("fallback", fallback))
					hits, compiled = fallbackHits, fq
					result.FallbackUsed = true
					result.FallbackQuery = fallback
				}
			}
		}
	}

	if req.Sort != nil {
		sortHits(snap, hits, *req.Sort)
	}
	hits = rules.ApplyPinned(hits, pinned, func(h candidateHit) string { return h.id })

	if len(req.Aggregations) > 0 {
		keys := make([]index.DocKey, len(hits))
		for i, h := range hits {
			keys[i] = h.key
		}
		aggs, err := aggregation.Compute(ctx, snap, keys, req.Aggregations)
		if err != nil {
			return services.SearchResult{}, cancelled(err)
		}
		result.Aggregations = aggs
	}

	var hl *highlighter
	if req.Highlight.IsEnabled() {
		hl = newHighlighter(def, hlFields, req.Highlight, compiled.Plan)
	}

	page := paginate(hits, req.Offset, limit)
	result.Hits = make([]services.HitResult, 0, len(page))
	for _, h := range page {
		doc := snap.Doc(h.key)
		hit := services.HitResult{
			ID:     doc.ID,
			Score:  h.score,
			Fields: def.StoredFields(doc.Fields),
		}
		if hl != nil {
			hit.Highlights = hl.highlight(doc)
		}
		result.Hits = append(result.Hits, hit)
	}
	result.Total = len(hits)
	result.HasMore = req.Offset+len(page) < len(hits)

	took := time.Since(startTime)
	result.TookMs = took.Milliseconds()
	metrics.SearchDuration.WithLabelValues(def.Name).Observe(took.Seconds())
	metrics.SearchHitsTotal.WithLabelValues(def.Name).Add(float64(result.Total))

	return result, nil
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", internalErrors.ErrCancelled, err)
}

// resolveLimit applies the default and silently caps the limit.
func resolveLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, internalErrors.NewValidationError("limit", "limit cannot be negative")
	case limit == 0:
		return config.DefaultResultLimit, nil
	case limit > config.MaxResultLimit:
		return config.MaxResultLimit, nil
	}
	return limit, nil
}

func paginate(hits []candidateHit, offset, limit int) []candidateHit {
	if offset >= len(hits) {
		return nil
	}
	end := offset + limit
	if end > len(hits) {
		end = len(hits)
	}
	return hits[offset:end]
}

func validateSort(def *config.IndexDefinition, opt services.SortOption) error {
	f, ok := def.Field(opt.Field)
	if !ok {
		return internalErrors.NewValidationError("sort.field", fmt.Sprintf("unknown field '%s'", opt.Field))
	}
	if !f.Sortable() {
		return internalErrors.NewValidationError("sort.field", fmt.Sprintf("field '%s' must be a fast integer, float or date field to sort on", opt.Field))
	}
	if opt.Order != "" && opt.Order != "asc" && opt.Order != "desc" {
		return internalErrors.NewValidationError("sort.order", "order must be 'asc' or 'desc'")
	}
	return nil
}

// sortHits orders hits by the value of a fast field. Ties fall back to score and then
// to document order; documents without a value go last.
func sortHits(snap *index.Snapshot, hits []candidateHit, opt services.SortOption) {
	type sortValue struct {
		n  float64
		ok bool
	}
	values := make(map[index.DocKey]sortValue, len(hits))
	for _, h := range hits {
		var sv sortValue
		if v, ok := snap.Value(h.key, opt.Field); ok {
			sv.n, sv.ok = v.Number()
		}
		values[h.key] = sv
	}

	desc := opt.Descending()
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := values[hits[i].key], values[hits[j].key]
		if a.ok != b.ok {
			return a.ok
		}
		if a.ok && a.n != b.n {
			if desc {
				return a.n > b.n
			}
			return a.n < b.n
		}
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].key < hits[j].key
	})
}
