package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gcbaptista/go-search-service/config"
	"github.com/gcbaptista/go-search-service/model"
)

func openTestStore(t *testing.T) *MetadataStore {
	t.Helper()
	s, err := OpenMetadataStore("", true, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(name string) IndexRecord {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return IndexRecord{
		Definition: config.IndexDefinition{
			Name: name,
			Fields: []config.FieldDefinition{
				{Name: "title", Type: model.FieldTypeText, Stored: true, Indexed: true},
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestIndexRecords(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetIndex("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.PutIndex(record("movies")))
	require.NoError(t, s.PutIndex(record("books")))

	rec, err := s.GetIndex("movies")
	require.NoError(t, err)
	assert.Equal(t, "movies", rec.Definition.Name)
	assert.Equal(t, model.FieldTypeText, rec.Definition.Fields[0].Type)

	records, err := s.ListIndexes()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "books", records[0].Definition.Name)
	assert.Equal(t, "movies", records[1].Definition.Name)

	require.NoError(t, s.UpdateDocumentCount("movies", 42))
	rec, err = s.GetIndex("movies")
	require.NoError(t, err)
	assert.Equal(t, 42, rec.DocumentCount)
	assert.True(t, rec.UpdatedAt.After(rec.CreatedAt))

	assert.ErrorIs(t, s.UpdateDocumentCount("missing", 1), ErrNotFound)
}

func TestRulesAndDelete(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.PutIndex(record("books")))

	groups, err := s.LoadSynonyms("books")
	require.NoError(t, err)
	assert.Empty(t, groups)

	require.NoError(t, s.SaveSynonyms("books", []model.SynonymGroup{{Terms: []string{"tariff", "tariffavtale"}}}))
	require.NoError(t, s.SavePinned("books", []model.PinnedRule{{Queries: []string{"ulv"}, DocumentIDs: []string{"d1"}}}))

	groups, err = s.LoadSynonyms("books")
	require.NoError(t, err)
	assert.Equal(t, []model.SynonymGroup{{Terms: []string{"tariff", "tariffavtale"}}}, groups)

	rules, err := s.LoadPinned("books")
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, rules[0].DocumentIDs)

	require.NoError(t, s.DeleteIndex("books"))

	_, err = s.GetIndex("books")
	assert.ErrorIs(t, err, ErrNotFound)
	groups, err = s.LoadSynonyms("books")
	require.NoError(t, err)
	assert.Empty(t, groups)
	rules, err = s.LoadPinned("books")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenMetadataStore(dir, false, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.PutIndex(record("books")))
	require.NoError(t, s.SavePinned("books", []model.PinnedRule{{Queries: []string{"ulv"}, DocumentIDs: []string{"d1"}}}))
	require.NoError(t, s.Close())

	s, err = OpenMetadataStore(dir, false, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.GetIndex("books")
	require.NoError(t, err)
	assert.Equal(t, "books", rec.Definition.Name)
	rules, err := s.LoadPinned("books")
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestHealthCheck(t *testing.T) {
	s, err := OpenMetadataStore("", true, nil)
	require.NoError(t, err)
	assert.NoError(t, s.HealthCheck())

	require.NoError(t, s.Close())
	assert.Error(t, s.HealthCheck())
}
