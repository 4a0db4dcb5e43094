package indexing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-search-service/config"
	"github.com/gcbaptista/go-search-service/index"
	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
	"github.com/gcbaptista/go-search-service/model"
)

func newTestDefinition() config.IndexDefinition {
	return config.IndexDefinition{
		Name: "test_index",
		Fields: []config.FieldDefinition{
			{Name: "title", Type: model.FieldTypeText, Stored: true, Indexed: true},
			{Name: "tags", Type: model.FieldTypeKeyword, Stored: true, Indexed: true, Fast: true},
			{Name: "year", Type: model.FieldTypeInteger, Stored: true, Indexed: true, Fast: true},
			{Name: "rating", Type: model.FieldTypeFloat, Fast: true},
			{Name: "published", Type: model.FieldTypeDate, Stored: true, Fast: true},
			{Name: "meta", Type: model.FieldTypeJSON, Stored: true, Indexed: true},
		},
	}
}

func newTestService(t *testing.T) (*Service, *index.Engine) {
	t.Helper()
	pool, err := ants.NewPool(4)
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	engine := index.New(newTestDefinition(), "")
	s, err := NewService(engine, pool, nil)
	require.NoError(t, err)
	return s, engine
}

func TestNewService(t *testing.T) {
	if _, err := NewService(nil, nil, nil); err == nil {
		t.Error("NewService() with nil engine, wantErr, got nil")
	}
}

func TestConvertDocument(t *testing.T) {
	def := newTestDefinition()

	tests := []struct {
		name      string
		raw       model.RawDocument
		wantField string
		check     func(t *testing.T, doc model.Document)
	}{
		{
			name: "all field types",
			raw: model.RawDocument{ID: "1", Fields: map[string]interface{}{
				"title":     "The Wolf",
				"tags":      []interface{}{"fairy", "classic"},
				"year":      float64(1843),
				"rating":    4.5,
				"published": "1843-01-01",
				"meta":      map[string]interface{}{"author": "Asbjørnsen"},
			}},
			check: func(t *testing.T, doc model.Document) {
				assert.Equal(t, "The Wolf", doc.Fields["title"].Str)
				assert.Equal(t, []string{"fairy", "classic"}, doc.Fields["tags"].Strs)
				assert.Equal(t, int64(1843), doc.Fields["year"].Int)
				assert.Equal(t, 4.5, doc.Fields["rating"].Float)
				assert.Equal(t, 1843, doc.Fields["published"].Time.Year())
				assert.JSONEq(t, `{"author":"Asbjørnsen"}`, string(doc.Fields["meta"].JSON))
			},
		},
		{
			name: "null values are absent",
			raw:  model.RawDocument{ID: "1", Fields: map[string]interface{}{"title": nil}},
			check: func(t *testing.T, doc model.Document) {
				assert.Empty(t, doc.Fields)
			},
		},
		{
			name: "unix timestamp date",
			raw:  model.RawDocument{ID: "1", Fields: map[string]interface{}{"published": float64(0)}},
			check: func(t *testing.T, doc model.Document) {
				assert.Equal(t, 1970, doc.Fields["published"].Time.Year())
			},
		},
		{
			name: "large integer keeps every digit",
			raw:  model.RawDocument{ID: "1", Fields: map[string]interface{}{"year": json.Number("9007199254740993")}},
			check: func(t *testing.T, doc model.Document) {
				assert.Equal(t, int64(9007199254740993), doc.Fields["year"].Int)
			},
		},
		{
			name: "exponent form integer",
			raw:  model.RawDocument{ID: "1", Fields: map[string]interface{}{"year": json.Number("1.843e3")}},
			check: func(t *testing.T, doc model.Document) {
				assert.Equal(t, int64(1843), doc.Fields["year"].Int)
			},
		},
		{
			name: "numeric strings for numeric fields",
			raw:  model.RawDocument{ID: "1", Fields: map[string]interface{}{"year": "42", "rating": "2.5"}},
			check: func(t *testing.T, doc model.Document) {
				assert.Equal(t, int64(42), doc.Fields["year"].Int)
				assert.Equal(t, 2.5, doc.Fields["rating"].Float)
			},
		},
		{
			name: "scalars are stringified for text and keyword",
			raw: model.RawDocument{ID: "1", Fields: map[string]interface{}{
				"title": 12,
				"tags":  []interface{}{"a", 1.5, true, json.Number("7")},
			}},
			check: func(t *testing.T, doc model.Document) {
				assert.Equal(t, "12", doc.Fields["title"].Str)
				assert.Equal(t, []string{"a", "1.5", "true", "7"}, doc.Fields["tags"].Strs)
			},
		},
		{name: "missing id", raw: model.RawDocument{ID: "  "}, wantField: "id"},
		{name: "unknown field", raw: model.RawDocument{ID: "1", Fields: map[string]interface{}{"author": "x"}}, wantField: "author"},
		{name: "fractional integer", raw: model.RawDocument{ID: "1", Fields: map[string]interface{}{"year": 18.5}}, wantField: "year"},
		{name: "integer exponent overflow", raw: model.RawDocument{ID: "1", Fields: map[string]interface{}{"year": json.Number("1e19")}}, wantField: "year"},
		{name: "integer beyond int64", raw: model.RawDocument{ID: "1", Fields: map[string]interface{}{"year": json.Number("99999999999999999999")}}, wantField: "year"},
		{name: "float beyond exact range", raw: model.RawDocument{ID: "1", Fields: map[string]interface{}{"year": float64(1 << 60)}}, wantField: "year"},
		{name: "non numeric string for integer", raw: model.RawDocument{ID: "1", Fields: map[string]interface{}{"year": "1843a"}}, wantField: "year"},
		{name: "non numeric string for float", raw: model.RawDocument{ID: "1", Fields: map[string]interface{}{"rating": "high"}}, wantField: "rating"},
		{name: "object for text", raw: model.RawDocument{ID: "1", Fields: map[string]interface{}{"title": map[string]interface{}{"a": 1}}}, wantField: "title"},
		{name: "nested array element", raw: model.RawDocument{ID: "1", Fields: map[string]interface{}{"tags": []interface{}{"a", []interface{}{"b"}}}}, wantField: "tags"},
		{name: "bad date", raw: model.RawDocument{ID: "1", Fields: map[string]interface{}{"published": "yesterday"}}, wantField: "published"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ConvertDocument(&def, tt.raw)
			if tt.wantField != "" {
				var ve *internalErrors.ValidationError
				require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
				assert.Equal(t, tt.wantField, ve.Field)
				return
			}
			require.NoError(t, err)
			tt.check(t, doc)
		})
	}
}

func TestConvertBatchReportsLowestPosition(t *testing.T) {
	pool, err := ants.NewPool(8)
	require.NoError(t, err)
	defer pool.Release()

	def := newTestDefinition()
	raws := make([]model.RawDocument, 50)
	for i := range raws {
		raws[i] = model.RawDocument{ID: fmt.Sprintf("d%d", i), Fields: map[string]interface{}{"year": float64(i)}}
	}
	raws[17].Fields["year"] = "bad"
	raws[42].Fields["year"] = "bad"

	_, err = ConvertBatch(pool, &def, raws)
	var ve *internalErrors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "documents[17].year", ve.Field)
}

func TestIndexDocuments(t *testing.T) {
	s, engine := newTestService(t)
	ctx := context.Background()

	n, err := s.IndexDocuments(ctx, []model.RawDocument{
		{ID: "1", Fields: map[string]interface{}{"title": "first"}},
		{ID: "2", Fields: map[string]interface{}{"title": "second"}},
		{ID: "1", Fields: map[string]interface{}{"title": "first again"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, engine.Snapshot().NumDocs())

	doc, err := s.GetDocument("1")
	require.NoError(t, err)
	assert.Equal(t, "first again", doc.Fields["title"].Str)

	t.Run("invalid batch is rejected atomically", func(t *testing.T) {
		_, err := s.IndexDocuments(ctx, []model.RawDocument{
			{ID: "3", Fields: map[string]interface{}{"title": "ok"}},
			{ID: "4", Fields: map[string]interface{}{"year": "nope"}},
		})
		assert.ErrorIs(t, err, internalErrors.ErrInvalidInput)
		assert.Contains(t, err.Error(), "documents[1].year")
		_, err = s.GetDocument("3")
		assert.ErrorIs(t, err, internalErrors.ErrDocumentNotFound)
	})

	t.Run("empty batch", func(t *testing.T) {
		_, err := s.IndexDocuments(ctx, nil)
		assert.ErrorIs(t, err, internalErrors.ErrInvalidInput)
	})

	t.Run("too many documents", func(t *testing.T) {
		raws := make([]model.RawDocument, config.MaxDocumentsPerRequest+1)
		_, err := s.IndexDocuments(ctx, raws)
		assert.ErrorIs(t, err, internalErrors.ErrInvalidInput)
	})
}

func TestGetDocumentReturnsStoredFieldsOnly(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.IndexDocuments(context.Background(), []model.RawDocument{
		{ID: "1", Fields: map[string]interface{}{"title": "wolf", "rating": 3.0}},
	})
	require.NoError(t, err)

	doc, err := s.GetDocument("1")
	require.NoError(t, err)
	assert.Contains(t, doc.Fields, "title")
	assert.NotContains(t, doc.Fields, "rating")
}

func TestDeleteDocument(t *testing.T) {
	s, engine := newTestService(t)
	ctx := context.Background()
	_, err := s.IndexDocuments(ctx, []model.RawDocument{{ID: "1", Fields: map[string]interface{}{"title": "wolf"}}})
	require.NoError(t, err)

	require.NoError(t, s.DeleteDocument(ctx, "1"))
	assert.Equal(t, 0, engine.Snapshot().NumDocs())

	err = s.DeleteDocument(ctx, "1")
	assert.ErrorIs(t, err, internalErrors.ErrDocumentNotFound)
}

func TestBulk(t *testing.T) {
	s, engine := newTestService(t)
	ctx := context.Background()
	_, err := s.IndexDocuments(ctx, []model.RawDocument{{ID: "existing", Fields: map[string]interface{}{"title": "old"}}})
	require.NoError(t, err)

	ops := []model.BulkOperation{
		{Operation: "index", Document: &model.RawDocument{ID: "a", Fields: map[string]interface{}{"title": "alpha"}}},
		{Operation: "index", Document: &model.RawDocument{ID: "b", Fields: map[string]interface{}{"year": "bad"}}},
		{Operation: "delete", ID: "existing"},
		{Operation: "delete", ID: "missing"},
		{Operation: "index"},
		{Operation: "index", Document: &model.RawDocument{ID: "c", Fields: map[string]interface{}{"title": "gamma"}}},
		{Operation: "delete", ID: "c"},
	}
	resp, err := s.Bulk(ctx, ops)
	require.NoError(t, err)

	assert.Equal(t, 7, resp.Total)
	assert.Equal(t, 4, resp.Successful)
	assert.Equal(t, 3, resp.Failed)
	require.Len(t, resp.Errors, 3)
	assert.Equal(t, 1, resp.Errors[0].Position)
	assert.Equal(t, "b", resp.Errors[0].ID)
	assert.Equal(t, 3, resp.Errors[1].Position)
	assert.True(t, strings.Contains(resp.Errors[1].Error, "missing"))
	assert.Equal(t, 4, resp.Errors[2].Position)

	snap := engine.Snapshot()
	assert.Equal(t, 1, snap.NumDocs())
	_, ok := snap.Lookup("a")
	assert.True(t, ok)
	_, ok = snap.Lookup("c")
	assert.False(t, ok)
}

func TestBulkAllInvalidCommitsNothing(t *testing.T) {
	s, engine := newTestService(t)
	resp, err := s.Bulk(context.Background(), []model.BulkOperation{{Operation: "delete", ID: "nope"}})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, uint64(0), engine.Snapshot().Version())
}
