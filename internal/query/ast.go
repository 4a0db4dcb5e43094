// Package query parses the query string syntax into an AST, rewrites it with
// synonyms, fuzziness and minimum-should-match, and binds it to an index schema.
package query

// Node is a parsed query expression. Leaves keep the literal text as written; it is
// analyzed only when the node is bound to a field.
type Node interface {
	node()
}

// TermNode matches a single word. Field is empty when the term is not scoped.
type TermNode struct {
	Field string
	Text  string
	Boost float64
	Pos   int
}

// FuzzyNode matches a word allowing up to MaxEdits edits.
type FuzzyNode struct {
	Field    string
	Text     string
	MaxEdits int
	Boost    float64
	Pos      int
}

// WildcardNode matches any term starting with Prefix.
type WildcardNode struct {
	Field  string
	Prefix string
	Boost  float64
	Pos    int
}

// PhraseSlot is one position of a phrase. A prefix slot matches any token starting
// with Text.
type PhraseSlot struct {
	Text   string
	Prefix bool
}

// PhraseNode matches consecutive tokens.
type PhraseNode struct {
	Field string
	Slots []PhraseSlot
	Boost float64
	Pos   int
}

// TermSetNode matches documents whose field equals any of Values.
type TermSetNode struct {
	Field  string
	Values []string
	Boost  float64
	Pos    int
}

// ExistsNode matches documents that have a value for Field.
type ExistsNode struct {
	Field string
	Pos   int
}

// Operator joins the clauses of a BooleanNode.
type Operator int

const (
	OpOr Operator = iota
	OpAnd
)

// BooleanNode combines its clauses with a single operator.
type BooleanNode struct {
	Op      Operator
	Clauses []Node
}

// MinimumShouldMatchNode is a group of juxtaposed clauses. Every Must clause has to
// match, no MustNot clause may match and at least Min of the Should clauses have to
// match.
type MinimumShouldMatchNode struct {
	Must    []Node
	MustNot []Node
	Should  []Node
	Min     int
}

// FieldScopedGroup records that Node was written as field:(...). Every leaf inside
// Node without its own field has already been scoped to Field.
type FieldScopedGroup struct {
	Field string
	Node  Node
}

// MatchAllNode matches every document.
type MatchAllNode struct{}

func (*TermNode) node()               {}
func (*FuzzyNode) node()              {}
func (*WildcardNode) node()           {}
func (*PhraseNode) node()             {}
func (*TermSetNode) node()            {}
func (*ExistsNode) node()             {}
func (*BooleanNode) node()            {}
func (*MinimumShouldMatchNode) node() {}
func (*FieldScopedGroup) node()       {}
func (*MatchAllNode) node()           {}
