// Package answer generates natural-language answers grounded in the top search hits
// of an index, either in one piece or as a stream of events.
package answer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
	"github.com/gcbaptista/go-search-service/internal/llm"
	"github.com/gcbaptista/go-search-service/internal/metrics"
	"github.com/gcbaptista/go-search-service/model"
	"github.com/gcbaptista/go-search-service/services"
)

// FallbackAnswer is returned when the search finds nothing, and is the reply the model
// is told to give when the sources do not contain the answer.
const FallbackAnswer = "I could not find an answer to that in the indexed documents."

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 20
	defaultTemperature = float32(0.2)
	maxTemperature     = float32(2)
	defaultMaxTokens   = 1024
	maxSourceRunes     = 2000
)

// Answer modes and outcomes recorded in metrics.
const (
	modeSync   = "sync"
	modeStream = "stream"

	outcomeSuccess     = "success"
	outcomeNoHits      = "no_hits"
	outcomeSearchError = "search_error"
	outcomeUpstream    = "upstream_error"
	outcomeCancelled   = "cancelled"
)

const defaultSystemPrompt = `You answer questions using only the numbered sources provided by the user.
Cite every source you use as [n], where n is the number of the source.
Do not use any knowledge that is not in the sources.
If the sources do not contain the answer, reply exactly with: ` + FallbackAnswer

// State is the lifecycle stage of an answer request.
type State int

const (
	StateIdle State = iota
	StateSearching
	StateGenerating
	StateStreaming
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearching:
		return "searching"
	case StateGenerating:
		return "generating"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Searcher runs the retrieval step of an answer.
type Searcher interface {
	Search(ctx context.Context, req services.SearchRequest) (services.SearchResult, error)
}

// Orchestrator combines retrieval and generation. It is safe for concurrent use.
type Orchestrator struct {
	provider llm.Provider
	logger   *zap.Logger
}

// NewOrchestrator creates an orchestrator. A nil provider disables answers: every
// call fails with errors.ErrUpstreamUnavailable.
func NewOrchestrator(provider llm.Provider, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{provider: provider, logger: logger}
}

// Enabled reports whether a provider is configured.
func (o *Orchestrator) Enabled() bool {
	return o.provider != nil
}

// params are the resolved generation settings of a request.
type params struct {
	searchLimit  int
	temperature  float32
	maxTokens    int
	systemPrompt string
}

func resolve(req services.AnswerRequest) (params, error) {
	p := params{
		searchLimit:  req.SearchLimit,
		temperature:  defaultTemperature,
		maxTokens:    req.MaxTokens,
		systemPrompt: req.SystemPrompt,
	}
	if strings.TrimSpace(req.Query) == "" {
		return p, internalErrors.NewValidationError("query", "query is required")
	}
	switch {
	case p.searchLimit < 0 || p.searchLimit > maxSearchLimit:
		return p, internalErrors.NewValidationError("search_limit", fmt.Sprintf("search_limit must be between 1 and %d", maxSearchLimit))
	case p.searchLimit == 0:
		p.searchLimit = defaultSearchLimit
	}
	if req.Temperature != nil {
		if *req.Temperature < 0 || *req.Temperature > maxTemperature {
			return p, internalErrors.NewValidationError("temperature", "temperature must be between 0 and 2")
		}
		p.temperature = *req.Temperature
	}
	switch {
	case p.maxTokens < 0:
		return p, internalErrors.NewValidationError("max_tokens", "max_tokens cannot be negative")
	case p.maxTokens == 0:
		p.maxTokens = defaultMaxTokens
	}
	if strings.TrimSpace(p.systemPrompt) == "" {
		p.systemPrompt = defaultSystemPrompt
	}
	return p, nil
}

// retrieve runs the search step.
func retrieve(ctx context.Context, searcher Searcher, req services.AnswerRequest, p params) (services.SearchResult, error) {
	return searcher.Search(ctx, services.SearchRequest{
		Query:  req.Query,
		Limit:  p.searchLimit,
		Fields: req.Fields,
		Fuzzy:  req.Fuzzy,
	})
}

// Answer searches, then asks the provider for a complete answer. Search errors are
// returned as they are and the provider is not called.
func (o *Orchestrator) Answer(ctx context.Context, searcher Searcher, req services.AnswerRequest) (*services.AnswerResponse, error) {
	if o.provider == nil {
		return nil, internalErrors.ErrUpstreamUnavailable
	}
	p, err := resolve(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	state := StateSearching
	result, err := retrieve(ctx, searcher, req, p)
	if err != nil {
		o.finish(modeSync, outcomeFor(err, outcomeSearchError), state, err)
		return nil, err
	}

	resp := &services.AnswerResponse{
		Model:        o.provider.Model(),
		SearchTookMs: time.Since(start).Milliseconds(),
		Sources:      result.Hits,
	}
	if len(result.Hits) == 0 {
		resp.Answer = FallbackAnswer
		resp.TotalTookMs = time.Since(start).Milliseconds()
		o.finish(modeSync, outcomeNoHits, StateDone, nil)
		return resp, nil
	}

	state = StateGenerating
	llmStart := time.Now()
	text, err := o.provider.Complete(ctx, buildPrompt(req.Query, result.Hits, p))
	if err != nil {
		o.finish(modeSync, outcomeFor(err, outcomeUpstream), state, err)
		return nil, err
	}

	resp.Answer = strings.TrimSpace(text)
	resp.LLMTookMs = time.Since(llmStart).Milliseconds()
	resp.TotalTookMs = time.Since(start).Milliseconds()
	o.finish(modeSync, outcomeSuccess, StateDone, nil)
	return resp, nil
}

func outcomeFor(err error, otherwise string) string {
	if internalErrors.KindOf(err) == internalErrors.KindCancelled {
		return outcomeCancelled
	}
	return otherwise
}

func (o *Orchestrator) finish(mode, outcome string, state State, err error) {
	metrics.AnswerRequestsTotal.WithLabelValues(mode, outcome).Inc()
	if err != nil && outcome != outcomeCancelled {
		o.logger.Warn("Answer request failed",
			zap.String("mode", mode),
			zap.Stringer("state", state),
			zap.Error(err))
	}
}

// buildPrompt numbers the hits as sources and lists their stored text and keyword
// fields, with long values truncated.
func buildPrompt(query string, hits []services.HitResult, p params) llm.Prompt {
	var b strings.Builder
	b.WriteString("Sources:\n")
	for i, hit := range hits {
		fmt.Fprintf(&b, "\n[%d] id: %s\n", i+1, hit.ID)

		names := make([]string, 0, len(hit.Fields))
		for name, v := range hit.Fields {
			if v.Kind == model.FieldTypeText || v.Kind == model.FieldTypeKeyword {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			value := strings.Join(hit.Fields[name].Strings(), ", ")
			fmt.Fprintf(&b, "%s: %s\n", name, truncate(value, maxSourceRunes))
		}
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n", query)

	return llm.Prompt{
		System:      p.systemPrompt,
		User:        b.String(),
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}
