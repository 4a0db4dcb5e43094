// Package index is the per-index inverted-index engine. Documents are written in
// immutable segments and readers work on immutable snapshots, so a commit never
// blocks or disturbs a search in progress.
package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gcbaptista/go-search-service/config"
	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
	"github.com/gcbaptista/go-search-service/internal/persistence"
	"github.com/gcbaptista/go-search-service/model"
)

const (
	snapshotFile = "snapshot.gob"

	// maxSegments is the segment count above which a commit merges everything into
	// a single segment.
	maxSegments = 8
)

// Engine holds the current snapshot of one index and serializes its writers.
type Engine struct {
	def     config.IndexDefinition
	dir     string
	current atomic.Pointer[Snapshot]

	writeMu     sync.Mutex
	nextSegment uint64 // guarded by writeMu
	closed      bool   // guarded by writeMu
}

// diskSnapshot is the gob representation of a snapshot.
type diskSnapshot struct {
	Version     uint64
	NextSegment uint64
	Segments    []*Segment
	Deleted     map[uint64]map[uint32]bool
}

// New creates an empty engine. When dir is empty the engine is memory-only.
func New(def config.IndexDefinition, dir string) *Engine {
	e := &Engine{def: def.Clone(), dir: dir}
	e.current.Store(newSnapshot(0, &e.def, nil, nil, nil))
	return e
}

// Open loads the engine persisted in dir, or creates an empty one if dir holds no
// snapshot yet.
func Open(def config.IndexDefinition, dir string) (*Engine, error) {
	e := New(def, dir)

	var disk diskSnapshot
	err := persistence.LoadGob(filepath.Join(dir, snapshotFile), &disk)
	if errors.Is(err, os.ErrNotExist) {
		return e, nil
	}
	if err != nil {
		return nil, err
	}

	e.nextSegment = disk.NextSegment
	e.current.Store(newSnapshot(disk.Version, &e.def, disk.Segments, disk.Deleted, nil))
	return e, nil
}

// Snapshot returns the latest committed snapshot.
func (e *Engine) Snapshot() *Snapshot {
	return e.current.Load()
}

// Dir returns the directory the engine persists to, or an empty string.
func (e *Engine) Dir() string {
	return e.dir
}

// Close waits for the current writer and marks the engine closed. Commits that
// follow fail with an IndexNotFoundError and never touch the directory. Snapshots
// already taken stay readable.
func (e *Engine) Close() {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	e.closed = true
}

// Destroy closes the engine and removes its on-disk data.
func (e *Engine) Destroy() error {
	e.Close()
	if e.dir == "" {
		return nil
	}
	return os.RemoveAll(e.dir)
}

// Writer acquires the engine's writer lock and returns a Writer. Callers must finish
// with Commit or Rollback; until then other writers of the same engine wait.
func (e *Engine) Writer() *Writer {
	e.writeMu.Lock()
	return &Writer{
		e:       e,
		base:    e.current.Load(),
		pending: make(map[string]bool),
	}
}

// Writer buffers additions and deletions and publishes them atomically on Commit.
type Writer struct {
	e       *Engine
	base    *Snapshot
	ops     []writeOp
	pending map[string]bool // id -> exists after the buffered ops
	done    bool
}

type writeOp struct {
	id  string
	doc *model.Document // nil for a delete
}

// Add buffers a document. A document with an existing id replaces the old one.
func (w *Writer) Add(doc model.Document) {
	w.ops = append(w.ops, writeOp{id: doc.ID, doc: &doc})
	w.pending[doc.ID] = true
}

// Exists reports whether id is visible, taking buffered operations into account.
func (w *Writer) Exists(id string) bool {
	if exists, ok := w.pending[id]; ok {
		return exists
	}
	_, ok := w.base.Lookup(id)
	return ok
}

// Delete buffers the deletion of id and reports whether the document existed.
func (w *Writer) Delete(id string) bool {
	if !w.Exists(id) {
		return false
	}
	w.ops = append(w.ops, writeOp{id: id})
	w.pending[id] = false
	return true
}

// Rollback discards the buffered operations and releases the writer lock.
func (w *Writer) Rollback() {
	if w.done {
		return
	}
	w.done = true
	w.e.writeMu.Unlock()
}

// Commit applies the buffered operations, persists the result and publishes it as the
// engine's current snapshot. On error nothing is published. The writer lock is
// released in every case.
func (w *Writer) Commit() (*Snapshot, error) {
	if w.done {
		return nil, fmt.Errorf("writer already closed")
	}
	defer w.Rollback()

	if w.e.closed {
		return nil, internalErrors.NewIndexNotFoundError(w.e.def.Name)
	}

	if len(w.ops) == 0 {
		return w.base, nil
	}

	base := w.base
	segments := append([]*Segment(nil), base.segments...)
	ids := make(map[string]DocKey, len(base.ids))
	for id, key := range base.ids {
		ids[id] = key
	}
	deleted := make(map[uint64]map[uint32]bool, len(base.deleted))
	for segID, ords := range base.deleted {
		deleted[segID] = ords
	}
	copied := make(map[uint64]bool)
	tombstone := func(key DocKey) {
		segID := segments[key.Segment()].ID
		if !copied[segID] {
			ords := make(map[uint32]bool, len(deleted[segID])+1)
			for ord := range deleted[segID] {
				ords[ord] = true
			}
			deleted[segID] = ords
			copied[segID] = true
		}
		deleted[segID][key.Ord()] = true
	}

	var added []*model.Document
	positions := make(map[string]int)
	for _, op := range w.ops {
		if i, ok := positions[op.id]; ok {
			if op.doc != nil {
				added[i] = op.doc
			} else {
				added[i] = nil
				delete(positions, op.id)
			}
			continue
		}
		if key, ok := ids[op.id]; ok {
			tombstone(key)
			delete(ids, op.id)
		}
		if op.doc != nil {
			positions[op.id] = len(added)
			added = append(added, op.doc)
		}
	}

	docs := make([]model.Document, 0, len(added))
	for _, doc := range added {
		if doc != nil {
			docs = append(docs, *doc)
		}
	}

	nextSegment := w.e.nextSegment
	if len(docs) > 0 {
		segments = append(segments, buildSegment(nextSegment, &w.e.def, docs))
		nextSegment++
		for ord, doc := range docs {
			ids[doc.ID] = MakeDocKey(len(segments)-1, uint32(ord))
		}
	}

	snap := newSnapshot(base.version+1, &w.e.def, segments, deleted, ids)
	if len(segments) > maxSegments {
		snap = w.e.merge(snap, nextSegment)
		nextSegment++
	}

	if w.e.dir != "" {
		disk := diskSnapshot{
			Version:     snap.version,
			NextSegment: nextSegment,
			Segments:    snap.segments,
			Deleted:     snap.deleted,
		}
		if err := persistence.SaveGob(filepath.Join(w.e.dir, snapshotFile), disk); err != nil {
			return nil, err
		}
	}

	w.e.nextSegment = nextSegment
	w.e.current.Store(snap)
	return snap, nil
}

// merge rewrites every live document of snap into a single new segment.
func (e *Engine) merge(snap *Snapshot, segmentID uint64) *Snapshot {
	docs := make([]model.Document, 0, snap.NumDocs())
	snap.ForEachLive(func(key DocKey) {
		docs = append(docs, snap.Doc(key))
	})
	if len(docs) == 0 {
		return newSnapshot(snap.version, &e.def, nil, nil, nil)
	}
	merged := buildSegment(segmentID, &e.def, docs)
	return newSnapshot(snap.version, &e.def, []*Segment{merged}, nil, nil)
}
