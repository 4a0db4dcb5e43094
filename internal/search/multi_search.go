package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
	"github.com/gcbaptista/go-search-service/services"
)

// MultiSearch executes multiple named search queries in parallel. Queries are
// independent: a failing query is reported under Errors and does not affect the others.
func (s *Service) MultiSearch(ctx context.Context, multiQuery services.MultiSearchRequest) (services.MultiSearchResult, error) {
	startTime := time.Now()

	if len(multiQuery.Queries) == 0 {
		return services.MultiSearchResult{}, internalErrors.NewValidationError("queries", "at least one query is required")
	}
	seen := make(map[string]bool, len(multiQuery.Queries))
	for i, nq := range multiQuery.Queries {
		if nq.Name == "" {
			return services.MultiSearchResult{}, internalErrors.NewValidationError(fmt.Sprintf("queries[%d].name", i), "each query must have a non-empty name")
		}
		if seen[nq.Name] {
			return services.MultiSearchResult{}, internalErrors.NewValidationError(fmt.Sprintf("queries[%d].name", i), fmt.Sprintf("duplicate query name '%s'", nq.Name))
		}
		seen[nq.Name] = true
	}

	var mu sync.Mutex
	results := make(map[string]services.SearchResult, len(multiQuery.Queries))
	failures := make(map[string]string)

	g, gctx := errgroup.WithContext(ctx)
	for _, namedQuery := range multiQuery.Queries {
		nq := namedQuery
		g.Go(func() error {
			result, err := s.Search(gctx, nq.SearchRequest)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if internalErrors.KindOf(err) == internalErrors.KindCancelled {
					return err
				}
				failures[nq.Name] = err.Error()
				return nil
			}
			results[nq.Name] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return services.MultiSearchResult{}, err
	}

	out := services.MultiSearchResult{
		Results:          results,
		TotalQueries:     len(multiQuery.Queries),
		ProcessingTimeMs: float64(time.Since(startTime).Nanoseconds()) / 1e6,
	}
	if len(failures) > 0 {
		out.Errors = failures
	}
	return out, nil
}
