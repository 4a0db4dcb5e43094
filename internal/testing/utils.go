// Package testing provides utilities and helpers for testing the search service.
package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-search-service/config"
	"github.com/gcbaptista/go-search-service/internal/engine"
	"github.com/gcbaptista/go-search-service/model"
	"github.com/gcbaptista/go-search-service/services"
	"github.com/gcbaptista/go-search-service/store"
)

// CreateTestMetadataStore opens an in-memory metadata store that is closed when the
// test ends.
func CreateTestMetadataStore(t *testing.T) *store.MetadataStore {
	t.Helper()
	meta, err := store.OpenMetadataStore("", true, nil)
	require.NoError(t, err, "Failed to open metadata store")
	t.Cleanup(func() { _ = meta.Close() })
	return meta
}

// CreateTestEngine creates an engine backed by an in-memory metadata store and a
// temporary data directory.
func CreateTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.NewEngine(t.TempDir(), CreateTestMetadataStore(t), nil, nil)
	require.NoError(t, err, "Failed to create test engine")
	return eng
}

// BooksDefinition returns the schema used by most tests.
func BooksDefinition(name string) config.IndexDefinition {
	return config.IndexDefinition{
		Name: name,
		Fields: []config.FieldDefinition{
			{Name: "title", Type: model.FieldTypeText, Stored: true, Indexed: true},
			{Name: "content", Type: model.FieldTypeText, Stored: true, Indexed: true},
			{Name: "category", Type: model.FieldTypeKeyword, Stored: true, Indexed: true, Fast: true},
			{Name: "year", Type: model.FieldTypeInteger, Stored: true, Indexed: true, Fast: true},
			{Name: "popularity", Type: model.FieldTypeFloat, Stored: true, Fast: true},
		},
	}
}

// CreateTestIndex creates an index with BooksDefinition.
func CreateTestIndex(t *testing.T, eng *engine.Engine, indexName string) config.IndexDefinition {
	t.Helper()
	def := BooksDefinition(indexName)
	err := eng.CreateIndex(context.Background(), def)
	require.NoError(t, err, "Failed to create test index")
	return def
}

// TestDocuments returns the documents added by AddTestDocuments.
func TestDocuments() []model.RawDocument {
	return []model.RawDocument{
		{ID: "doc1", Fields: map[string]interface{}{
			"title":      "The Matrix",
			"content":    "A computer programmer discovers reality is a simulation",
			"category":   "movie",
			"year":       1999,
			"popularity": 9.5,
		}},
		{ID: "doc2", Fields: map[string]interface{}{
			"title":      "Inception",
			"content":    "A thief enters people's dreams to steal secrets",
			"category":   "movie",
			"year":       2010,
			"popularity": 9.2,
		}},
		{ID: "doc3", Fields: map[string]interface{}{
			"title":      "Interstellar",
			"content":    "Astronauts travel through a wormhole to save humanity",
			"category":   []string{"movie", "space"},
			"year":       2014,
			"popularity": 8.8,
		}},
	}
}

// AddTestDocuments indexes TestDocuments into an index.
func AddTestDocuments(t *testing.T, eng *engine.Engine, indexName string) []model.RawDocument {
	t.Helper()
	accessor, err := eng.GetIndex(indexName)
	require.NoError(t, err, "Failed to get index accessor")

	docs := TestDocuments()
	n, err := accessor.IndexDocuments(context.Background(), docs)
	require.NoError(t, err, "Failed to add test documents")
	require.Equal(t, len(docs), n)
	return docs
}

// SearchTestCase represents a test case for search operations
type SearchTestCase struct {
	Name          string
	Request       services.SearchRequest
	ExpectedCount int
	ExpectedFirst string // Expected first result document ID
	ValidateFunc  func(t *testing.T, results *services.SearchResult)
}

// RunSearchTests runs a suite of search tests against an index
func RunSearchTests(t *testing.T, accessor services.IndexAccessor, tests []SearchTestCase) {
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			results, err := accessor.Search(context.Background(), tt.Request)
			require.NoError(t, err, "Search should not fail")

			assert.Equal(t, tt.ExpectedCount, results.Total, "Result count should match")

			if tt.ExpectedFirst != "" {
				require.NotEmpty(t, results.Hits, "Expected at least one hit")
				assert.Equal(t, tt.ExpectedFirst, results.Hits[0].ID, "First result should match expected")
			}

			if tt.ValidateFunc != nil {
				tt.ValidateFunc(t, &results)
			}
		})
	}
}
