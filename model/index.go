package model

import "time"

// IndexInfo is the summary of an index returned when listing indexes.
type IndexInfo struct {
	Name          string    `json:"name"`
	DocumentCount int       `json:"document_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// FieldStats describes a field in IndexStats.
type FieldStats struct {
	Name    string    `json:"name"`
	Type    FieldType `json:"field_type"`
	Indexed bool      `json:"indexed"`
	Stored  bool      `json:"stored"`
	Fast    bool      `json:"fast"`
}

// IndexStats holds statistics about a single index.
type IndexStats struct {
	Name          string       `json:"name"`
	DocumentCount int          `json:"document_count"`
	SegmentCount  int          `json:"segment_count"`
	SizeBytes     int64        `json:"size_bytes"`
	Fields        []FieldStats `json:"fields"`
	CreatedAt     time.Time    `json:"created_at"`
}

// SuggestRequest asks for indexed terms starting with Prefix.
type SuggestRequest struct {
	Prefix string `json:"prefix" binding:"required"`
	Field  string `json:"field,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// SuggestResponse lists the suggested terms.
type SuggestResponse struct {
	Suggestions []string `json:"suggestions"`
	TookMs      int64    `json:"took_ms"`
}
