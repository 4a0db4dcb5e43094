package index

import (
	"sort"
	"strings"

	"github.com/gcbaptista/go-search-service/config"
	"github.com/gcbaptista/go-search-service/model"
)

// Snapshot is an immutable point-in-time view of an index. Readers obtain one from
// Engine.Snapshot and can use it for as long as they like; later commits publish new
// snapshots and never modify an existing one.
type Snapshot struct {
	version  uint64
	def      *config.IndexDefinition
	segments []*Segment
	deleted  map[uint64]map[uint32]bool // segment ID -> deleted ordinals
	ids      map[string]DocKey
	avgLen   map[string]float64
}

func newSnapshot(version uint64, def *config.IndexDefinition, segments []*Segment, deleted map[uint64]map[uint32]bool, ids map[string]DocKey) *Snapshot {
	s := &Snapshot{
		version:  version,
		def:      def,
		segments: segments,
		deleted:  deleted,
		ids:      ids,
		avgLen:   make(map[string]float64),
	}
	if s.deleted == nil {
		s.deleted = make(map[uint64]map[uint32]bool)
	}
	if s.ids == nil {
		s.ids = s.rebuildIDs()
	}

	totalDocs := 0
	totals := make(map[string]uint64)
	for _, seg := range segments {
		totalDocs += len(seg.Docs)
		for name, fi := range seg.Fields {
			totals[name] += fi.TotalLength
		}
	}
	for name, total := range totals {
		if totalDocs > 0 {
			s.avgLen[name] = float64(total) / float64(totalDocs)
		}
	}
	return s
}

func (s *Snapshot) rebuildIDs() map[string]DocKey {
	ids := make(map[string]DocKey)
	for i, seg := range s.segments {
		dead := s.deleted[seg.ID]
		for ord, doc := range seg.Docs {
			if _, gone := dead[uint32(ord)]; gone {
				continue
			}
			ids[doc.ID] = MakeDocKey(i, uint32(ord))
		}
	}
	return ids
}

// Version increases by one with every commit.
func (s *Snapshot) Version() uint64 { return s.version }

// Definition returns the schema the snapshot was built with.
func (s *Snapshot) Definition() *config.IndexDefinition { return s.def }

// NumDocs returns the number of live documents.
func (s *Snapshot) NumDocs() int { return len(s.ids) }

// SegmentCount returns the number of segments in the snapshot.
func (s *Snapshot) SegmentCount() int { return len(s.segments) }

// Lookup resolves an external document id.
func (s *Snapshot) Lookup(id string) (DocKey, bool) {
	key, ok := s.ids[id]
	return key, ok
}

// IsLive reports whether key refers to a document that has not been deleted.
func (s *Snapshot) IsLive(key DocKey) bool {
	seg := key.Segment()
	if seg < 0 || seg >= len(s.segments) || int(key.Ord()) >= len(s.segments[seg].Docs) {
		return false
	}
	_, gone := s.deleted[s.segments[seg].ID][key.Ord()]
	return !gone
}

// Doc returns the stored document for key.
func (s *Snapshot) Doc(key DocKey) model.Document {
	return s.segments[key.Segment()].Docs[key.Ord()]
}

// Value returns the typed value of field for key.
func (s *Snapshot) Value(key DocKey, field string) (model.Value, bool) {
	v, ok := s.Doc(key).Fields[field]
	return v, ok
}

// ForEachLive calls fn for every live document in internal order.
func (s *Snapshot) ForEachLive(fn func(key DocKey)) {
	for i, seg := range s.segments {
		dead := s.deleted[seg.ID]
		for ord := range seg.Docs {
			if _, gone := dead[uint32(ord)]; gone {
				continue
			}
			fn(MakeDocKey(i, uint32(ord)))
		}
	}
}

// Postings calls fn for every live document containing term in field, in internal order.
func (s *Snapshot) Postings(field, term string, fn func(key DocKey, positions []int32)) {
	for i, seg := range s.segments {
		fi, ok := seg.Fields[field]
		if !ok {
			continue
		}
		dead := s.deleted[seg.ID]
		for _, p := range fi.Terms[term] {
			if _, gone := dead[p.Doc]; gone {
				continue
			}
			fn(MakeDocKey(i, p.Doc), p.Positions)
		}
	}
}

// DocFreq returns the number of live documents containing term in field.
func (s *Snapshot) DocFreq(field, term string) int {
	n := 0
	s.Postings(field, term, func(DocKey, []int32) { n++ })
	return n
}

// Terms returns the sorted distinct terms of field that start with prefix.
// An empty prefix returns the whole dictionary.
func (s *Snapshot) Terms(field, prefix string) []string {
	seen := make(map[string]struct{})
	for _, seg := range s.segments {
		fi, ok := seg.Fields[field]
		if !ok {
			continue
		}
		for term := range fi.Terms {
			if strings.HasPrefix(term, prefix) {
				seen[term] = struct{}{}
			}
		}
	}
	terms := make([]string, 0, len(seen))
	for term := range seen {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// FieldLength returns the number of tokens indexed for field in key.
func (s *Snapshot) FieldLength(key DocKey, field string) int {
	fi, ok := s.segments[key.Segment()].Fields[field]
	if !ok {
		return 0
	}
	return int(fi.Lengths[key.Ord()])
}

// AvgFieldLength returns the average token count of field across all documents.
func (s *Snapshot) AvgFieldLength(field string) float64 {
	return s.avgLen[field]
}

// HasValue reports whether the document has a value for field. For indexed fields
// the value must have produced at least one term.
func (s *Snapshot) HasValue(key DocKey, field string) bool {
	if fi, ok := s.segments[key.Segment()].Fields[field]; ok {
		return fi.Lengths[key.Ord()] > 0
	}
	_, ok := s.Value(key, field)
	return ok
}
