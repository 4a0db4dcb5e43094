package index

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-search-service/config"
	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
	"github.com/gcbaptista/go-search-service/model"
)

func testDefinition() config.IndexDefinition {
	return config.IndexDefinition{
		Name: "books",
		Fields: []config.FieldDefinition{
			{Name: "title", Type: model.FieldTypeText, Stored: true, Indexed: true},
			{Name: "genre", Type: model.FieldTypeKeyword, Stored: true, Indexed: true, Fast: true},
			{Name: "year", Type: model.FieldTypeInteger, Stored: true, Indexed: true, Fast: true},
			{Name: "published", Type: model.FieldTypeDate, Stored: true, Fast: true},
		},
	}
}

func doc(id, title string, year int64) model.Document {
	return model.Document{
		ID: id,
		Fields: map[string]model.Value{
			"title": model.TextValue(title),
			"year":  model.IntValue(year),
		},
	}
}

func commit(t *testing.T, e *Engine, docs ...model.Document) *Snapshot {
	t.Helper()
	w := e.Writer()
	for _, d := range docs {
		w.Add(d)
	}
	snap, err := w.Commit()
	require.NoError(t, err)
	return snap
}

func TestCommitAndPostings(t *testing.T) {
	e := New(testDefinition(), "")
	snap := commit(t, e,
		doc("1", "Den store stygge ulven", 1990),
		doc("2", "Ulven og de tre bukkene", 2001),
	)

	assert.Equal(t, 2, snap.NumDocs())
	assert.Equal(t, uint64(1), snap.Version())
	assert.Equal(t, 2, snap.DocFreq("title", "ulven"))
	assert.Equal(t, 1, snap.DocFreq("year", "1990"))

	var positions [][]int32
	snap.Postings("title", "ulven", func(_ DocKey, pos []int32) {
		positions = append(positions, pos)
	})
	assert.Equal(t, [][]int32{{3}, {0}}, positions)

	assert.Equal(t, []string{"store", "stygge"}, snap.Terms("title", "st"))
	assert.InDelta(t, 4.5, snap.AvgFieldLength("title"), 0.001)
}

func TestUpsertReplacesDocument(t *testing.T) {
	e := New(testDefinition(), "")
	commit(t, e, doc("1", "gammel tittel", 1990))
	snap := commit(t, e, doc("1", "ny tittel", 2020))

	assert.Equal(t, 1, snap.NumDocs())
	assert.Equal(t, 0, snap.DocFreq("title", "gammel"))
	assert.Equal(t, 1, snap.DocFreq("title", "ny"))

	key, ok := snap.Lookup("1")
	require.True(t, ok)
	v, ok := snap.Value(key, "year")
	require.True(t, ok)
	assert.Equal(t, int64(2020), v.Int)
}

func TestDeleteIsNotIdempotent(t *testing.T) {
	e := New(testDefinition(), "")
	commit(t, e, doc("1", "ulven", 1990))

	w := e.Writer()
	assert.True(t, w.Delete("1"))
	assert.False(t, w.Delete("1"), "second delete in the same batch must report a missing document")
	_, err := w.Commit()
	require.NoError(t, err)

	w = e.Writer()
	assert.False(t, w.Delete("1"))
	w.Rollback()

	assert.Equal(t, 0, e.Snapshot().NumDocs())
}

func TestBatchOperationsApplyInOrder(t *testing.T) {
	e := New(testDefinition(), "")
	w := e.Writer()
	w.Add(doc("a", "first", 1))
	w.Add(doc("a", "second", 2))
	w.Add(doc("b", "kept", 3))
	w.Add(doc("c", "removed", 4))
	assert.True(t, w.Delete("c"))
	snap, err := w.Commit()
	require.NoError(t, err)

	assert.Equal(t, 2, snap.NumDocs())
	key, ok := snap.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "second", snap.Doc(key).Fields["title"].Str)
	_, ok = snap.Lookup("c")
	assert.False(t, ok)
}

func TestSnapshotIsolation(t *testing.T) {
	e := New(testDefinition(), "")
	commit(t, e, doc("1", "ulven", 1990))

	reader := e.Snapshot()
	commit(t, e, doc("2", "ulven igjen", 2000))
	w := e.Writer()
	w.Delete("1")
	_, err := w.Commit()
	require.NoError(t, err)

	assert.Equal(t, 1, reader.NumDocs(), "an old snapshot must not observe later commits")
	assert.Equal(t, 1, reader.DocFreq("title", "ulven"))
	assert.Equal(t, 1, e.Snapshot().NumDocs())
	_, ok := e.Snapshot().Lookup("1")
	assert.False(t, ok)
}

func TestConcurrentWritersQueue(t *testing.T) {
	e := New(testDefinition(), "")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := e.Writer()
			w.Add(doc(string(rune('a'+i)), "ulven", int64(i)))
			_, err := w.Commit()
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snap := e.Snapshot()
	assert.Equal(t, 20, snap.NumDocs())
	assert.Equal(t, uint64(20), snap.Version())
	assert.LessOrEqual(t, snap.SegmentCount(), maxSegments)
	assert.Equal(t, 20, snap.DocFreq("title", "ulven"))
}

func TestPersistAndReopen(t *testing.T) {
	dir := t.TempDir()
	def := testDefinition()
	e := New(def, dir)

	published := time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)
	d := doc("1", "Eventyr fra Norge", 1843)
	d.Fields["published"] = model.DateValue(published)
	d.Fields["genre"] = model.Value{Kind: model.FieldTypeKeyword, Str: "Folk", Strs: []string{"Folk", "Classic"}}
	commit(t, e, d, doc("2", "Ulven", 1990))

	w := e.Writer()
	w.Delete("2")
	_, err := w.Commit()
	require.NoError(t, err)

	reopened, err := Open(def, dir)
	require.NoError(t, err)
	snap := reopened.Snapshot()

	assert.Equal(t, 1, snap.NumDocs())
	assert.Equal(t, uint64(2), snap.Version())
	key, ok := snap.Lookup("1")
	require.True(t, ok)
	assert.True(t, snap.Doc(key).Fields["published"].Time.Equal(published))
	assert.Equal(t, 1, snap.DocFreq("genre", "classic"))
	assert.True(t, snap.HasValue(key, "published"))

	// New segments after reopen must not reuse persisted segment ids.
	commit(t, reopened, doc("3", "Ny bok", 2024))
	assert.Equal(t, 2, reopened.Snapshot().NumDocs())
}

func TestOpenEmptyDirectory(t *testing.T) {
	e, err := Open(testDefinition(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, e.Snapshot().NumDocs())
}

func TestDestroyRejectsLaterCommits(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "books")
	e := New(testDefinition(), dir)
	commit(t, e, doc("1", "Ulven", 1990))

	held := e.Writer()
	held.Add(doc("2", "Bukkene", 2001))
	destroyed := make(chan error, 1)
	go func() { destroyed <- e.Destroy() }()

	// Destroy waits for the writer that is already open.
	_, err := held.Commit()
	require.NoError(t, err)
	require.NoError(t, <-destroyed)

	w := e.Writer()
	w.Add(doc("3", "Troll", 2010))
	_, err = w.Commit()
	assert.ErrorIs(t, err, internalErrors.ErrIndexNotFound)

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "a rejected commit must not recreate the directory")
	assert.Equal(t, 2, e.Snapshot().NumDocs())
}

func TestAnalyzeQuery(t *testing.T) {
	def := testDefinition()
	title, _ := def.Field("title")
	year, _ := def.Field("year")
	published, _ := def.Field("published")

	terms, err := AnalyzeQuery(title, "Store Ulven")
	require.NoError(t, err)
	assert.Equal(t, []string{"store", "ulven"}, terms)

	terms, err = AnalyzeQuery(year, "1990")
	require.NoError(t, err)
	assert.Equal(t, []string{"1990"}, terms)

	_, err = AnalyzeQuery(year, "nineteen")
	assert.Error(t, err)

	terms, err = AnalyzeQuery(published, "2024-05-17")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05-17T00:00:00Z"}, terms)

	_, err = AnalyzeQuery(published, "17/05/2024")
	assert.Error(t, err)
}
