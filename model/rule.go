package model

// SynonymGroup is a set of terms treated as interchangeable at query time.
type SynonymGroup struct {
	Terms []string `json:"terms" binding:"required,min=2,dive,required"`
}

// PinnedRule forces DocumentIDs to the top of the results, in order, whenever the
// incoming query contains one of Queries (case-insensitive substring match).
type PinnedRule struct {
	Queries     []string `json:"queries" binding:"required,min=1,dive,required"`
	DocumentIDs []string `json:"document_ids" binding:"required,min=1,dive,required"`
}
