package search

import "github.com/gcbaptista/go-search-service/index"

// candidateHit is a matching document during search processing.
type candidateHit struct {
	key   index.DocKey
	id    string
	score float64
}

// matchSet maps every matching document to its score.
type matchSet map[index.DocKey]float64
