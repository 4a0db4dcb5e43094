package query

// Plan is a query bound to the fields of an index, ready to be executed.
// Terms in a plan are already analyzed the way the field was indexed.
type Plan interface {
	plan()
}

// TermQuery matches Terms in Field. A single term is a plain term match; several
// terms must appear consecutively.
type TermQuery struct {
	Field string
	Terms []string
	Boost float64
}

// FuzzyQuery matches every term of Field within MaxEdits of Term.
type FuzzyQuery struct {
	Field    string
	Term     string
	MaxEdits int
	Boost    float64
}

// PrefixQuery matches every term of Field starting with Prefix.
type PrefixQuery struct {
	Field  string
	Prefix string
	Boost  float64
}

// Slot is one analyzed position of a PhraseQuery.
type Slot struct {
	Term   string
	Prefix bool
}

// PhraseQuery matches Slots at consecutive positions of Field.
type PhraseQuery struct {
	Field string
	Slots []Slot
	Boost float64
}

// TermSetQuery matches documents where Field holds any of Values. Each value is the
// analyzed token sequence of one literal.
type TermSetQuery struct {
	Field  string
	Values [][]string
	Boost  float64
}

// ExistsQuery matches documents that have a value for Field.
type ExistsQuery struct {
	Field string
}

// BoolQuery requires every Must clause, excludes every MustNot clause and requires
// at least MinShould of the Should clauses.
type BoolQuery struct {
	Must      []Plan
	MustNot   []Plan
	Should    []Plan
	MinShould int
}

// MatchAllQuery matches every live document with a constant score.
type MatchAllQuery struct{}

// MatchNoneQuery matches nothing.
type MatchNoneQuery struct{}

func (*TermQuery) plan()      {}
func (*FuzzyQuery) plan()     {}
func (*PrefixQuery) plan()    {}
func (*PhraseQuery) plan()    {}
func (*TermSetQuery) plan()   {}
func (*ExistsQuery) plan()    {}
func (*BoolQuery) plan()      {}
func (*MatchAllQuery) plan()  {}
func (*MatchNoneQuery) plan() {}
