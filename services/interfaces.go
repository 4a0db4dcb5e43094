package services

import (
	"context"

	"github.com/gcbaptista/go-search-service/config"
	"github.com/gcbaptista/go-search-service/model"
)

// SortOption orders hits by a fast numeric or date field instead of relevance.
type SortOption struct {
	Field string `json:"field" binding:"required"`
	Order string `json:"order,omitempty" binding:"omitempty,oneof=asc desc"` // defaults to asc
}

// Descending reports whether the sort order is descending.
func (s SortOption) Descending() bool {
	return s.Order == "desc"
}

// HighlightOptions configures snippet generation for hits.
type HighlightOptions struct {
	Enabled  *bool    `json:"enabled,omitempty"` // defaults to true when the object is present
	Fields   []string `json:"fields,omitempty"`
	PreTag   string   `json:"pre_tag,omitempty"`
	PostTag  string   `json:"post_tag,omitempty"`
	MaxChars int      `json:"max_chars,omitempty"`
}

// IsEnabled reports whether highlighting was requested.
func (h *HighlightOptions) IsEnabled() bool {
	if h == nil {
		return false
	}
	return h.Enabled == nil || *h.Enabled
}

// RangeSpec is one bucket of a range aggregation. From is inclusive, To is exclusive.
type RangeSpec struct {
	Key  string   `json:"key,omitempty"`
	From *float64 `json:"from,omitempty"`
	To   *float64 `json:"to,omitempty"`
}

// AggregationRequest describes one named aggregation and its optional sub-aggregations.
type AggregationRequest struct {
	Name             string               `json:"name" binding:"required"`
	Type             string               `json:"agg_type" binding:"required"`
	Field            string               `json:"field" binding:"required"`
	Size             int                  `json:"size,omitempty"`
	Interval         float64              `json:"interval,omitempty"`
	CalendarInterval string               `json:"calendar_interval,omitempty"`
	Ranges           []RangeSpec          `json:"ranges,omitempty"`
	Percents         []float64            `json:"percents,omitempty"`
	Aggregations     []AggregationRequest `json:"aggregations,omitempty"`
}

// SearchRequest is a query against a single index.
type SearchRequest struct {
	Query              string               `json:"query"`
	Limit              int                  `json:"limit,omitempty"`
	Offset             int                  `json:"offset,omitempty" binding:"min=0"`
	Fields             []string             `json:"fields,omitempty"`
	Boost              map[string]float64   `json:"boost,omitempty"`
	Fuzzy              bool                 `json:"fuzzy,omitempty"`
	Sort               *SortOption          `json:"sort,omitempty"`
	Highlight          *HighlightOptions    `json:"highlight,omitempty"`
	MinimumShouldMatch int                  `json:"minimum_should_match,omitempty" binding:"min=0"`
	Aggregations       []AggregationRequest `json:"aggregations,omitempty" binding:"dive"`
}

// HitResult represents a single document in the search results.
type HitResult struct {
	ID         string                 `json:"id"`
	Score      float64                `json:"score"`
	Fields     map[string]model.Value `json:"fields"`
	Highlights map[string][]string    `json:"highlights,omitempty"`
}

// SearchResult is the response to a SearchRequest.
type SearchResult struct {
	QueryID       string                 `json:"query_id"`
	TookMs        int64                  `json:"took_ms"`
	Total         int                    `json:"total"`
	Offset        int                    `json:"offset"`
	Limit         int                    `json:"limit"`
	HasMore       bool                   `json:"has_more"`
	FallbackUsed  bool                   `json:"fallback_used"`
	FallbackQuery string                 `json:"fallback_query,omitempty"`
	Hits          []HitResult            `json:"hits"`
	Aggregations  map[string]interface{} `json:"aggregations,omitempty"`
}

// NamedSearchRequest is one entry of a MultiSearchRequest.
type NamedSearchRequest struct {
	Name string `json:"name" binding:"required"`
	SearchRequest
}

// MultiSearchRequest executes several independent queries against one index.
type MultiSearchRequest struct {
	Queries []NamedSearchRequest `json:"queries" binding:"required,min=1,dive"`
}

// MultiSearchResult holds the result of every named query.
type MultiSearchResult struct {
	Results          map[string]SearchResult `json:"results"`
	Errors           map[string]string       `json:"errors,omitempty"`
	TotalQueries     int                     `json:"total_queries"`
	ProcessingTimeMs float64                 `json:"processing_time_ms"`
}

// AnswerRequest asks for an answer generated from the top search hits.
type AnswerRequest struct {
	Query        string   `json:"query" binding:"required"`
	SearchLimit  int      `json:"search_limit,omitempty" binding:"min=0,max=20"`
	Fields       []string `json:"fields,omitempty"`
	Fuzzy        bool     `json:"fuzzy,omitempty"`
	Stream       *bool    `json:"stream,omitempty"` // defaults to true
	Temperature  *float32 `json:"temperature,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
}

// Streaming reports whether the answer should be streamed.
func (r AnswerRequest) Streaming() bool {
	return r.Stream == nil || *r.Stream
}

// AnswerResponse is the non-streaming answer payload.
type AnswerResponse struct {
	Answer       string      `json:"answer"`
	Model        string      `json:"model"`
	SearchTookMs int64       `json:"search_took_ms"`
	LLMTookMs    int64       `json:"llm_took_ms"`
	TotalTookMs  int64       `json:"total_took_ms"`
	Sources      []HitResult `json:"sources"`
}

// Indexer mutates the documents of one index.
type Indexer interface {
	IndexDocuments(ctx context.Context, docs []model.RawDocument) (int, error)
	DeleteDocument(ctx context.Context, id string) error
	Bulk(ctx context.Context, ops []model.BulkOperation) (model.BulkResponse, error)
	GetDocument(id string) (model.Document, error)
}

// Searcher runs queries against one index.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) (SearchResult, error)
	MultiSearch(ctx context.Context, req MultiSearchRequest) (MultiSearchResult, error)
	Suggest(req model.SuggestRequest) (model.SuggestResponse, error)
}

// RuleManager manages the synonym groups and pinned rules of one index.
type RuleManager interface {
	Synonyms() []model.SynonymGroup
	SetSynonyms(ctx context.Context, groups []model.SynonymGroup) error
	AddSynonyms(ctx context.Context, groups []model.SynonymGroup) error
	ClearSynonyms(ctx context.Context) error
	PinnedRules() []model.PinnedRule
	SetPinnedRules(ctx context.Context, rules []model.PinnedRule) error
	AddPinnedRules(ctx context.Context, rules []model.PinnedRule) error
	ClearPinnedRules(ctx context.Context) error
}

// IndexAccessor provides access to a single index.
type IndexAccessor interface {
	Indexer
	Searcher
	RuleManager
	Definition() config.IndexDefinition
	Stats() (model.IndexStats, error)
}

// IndexManager owns the set of indexes.
type IndexManager interface {
	CreateIndex(ctx context.Context, def config.IndexDefinition) error
	GetIndex(name string) (IndexAccessor, error)
	GetIndexDefinition(name string) (config.IndexDefinition, error)
	ListIndexes() []model.IndexInfo
	DeleteIndex(ctx context.Context, name string) error
}
