package index

// Posting records the positions at which a term occurs in one field of one document.
type Posting struct {
	Doc       uint32  // Segment-local document ordinal
	Positions []int32 // Token positions, ascending
}

// PostingList is a slice of Posting sorted by Doc.
type PostingList []Posting

// DocKey addresses a document inside a Snapshot: the segment position in the high
// 32 bits and the segment-local ordinal in the low 32 bits. Ordering DocKeys gives the
// engine's deterministic internal document order.
type DocKey uint64

// MakeDocKey builds a DocKey from a segment position and a document ordinal.
func MakeDocKey(segment int, ord uint32) DocKey {
	return DocKey(uint64(segment)<<32 | uint64(ord))
}

// Segment returns the segment position of the key.
func (k DocKey) Segment() int {
	return int(k >> 32)
}

// Ord returns the segment-local ordinal of the key.
func (k DocKey) Ord() uint32 {
	return uint32(k)
}
