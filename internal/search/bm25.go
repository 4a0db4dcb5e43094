package search

import (
	"math"

	"github.com/gcbaptista/go-search-service/index"
)

const (
	bm25K1 = 1.2  // Controls term frequency saturation
	bm25B  = 0.75 // Controls how much effect document length has

	// fuzzyScoreFactor scales the score of a term reached through an edit.
	fuzzyScoreFactor = 0.8
	// prefixScoreFactor scales the score of a term reached through a prefix.
	prefixScoreFactor = 0.9
	// constantScore is the per-field score of phrase, term-set and exists matches.
	constantScore = 1.0
)

// BM25Calculator scores term matches against one snapshot.
type BM25Calculator struct {
	snap      *index.Snapshot
	totalDocs float64
}

// NewBM25Calculator creates a calculator for snap.
func NewBM25Calculator(snap *index.Snapshot) *BM25Calculator {
	return &BM25Calculator{
		snap:      snap,
		totalDocs: float64(snap.NumDocs()),
	}
}

// IDF calculates the inverse document frequency of a term found in docFreq documents.
// IDF = ln(1 + (N - df + 0.5) / (df + 0.5))
func (calc *BM25Calculator) IDF(docFreq int) float64 {
	if calc.totalDocs == 0 || docFreq == 0 {
		return 0.0
	}
	df := float64(docFreq)
	return math.Log(1 + (calc.totalDocs-df+0.5)/(df+0.5))
}

// CalculateBM25 scores one document for a term with the given IDF, occurring termFreq
// times in field.
// BM25 = IDF * (tf * (k1 + 1)) / (tf + k1 * (1 - b + b * (|d| / avgdl)))
func (calc *BM25Calculator) CalculateBM25(field string, key index.DocKey, idf float64, termFreq int) float64 {
	if termFreq == 0 {
		return 0.0
	}
	tf := float64(termFreq)

	norm := 1.0
	if avg := calc.snap.AvgFieldLength(field); avg > 0 {
		docLength := float64(calc.snap.FieldLength(key, field))
		norm = 1 - bm25B + bm25B*(docLength/avg)
	}

	return idf * (tf * (bm25K1 + 1)) / (tf + bm25K1*norm)
}
