package query

import "github.com/Othello1111/edx-platform/internal/ir"

// Query is a compilable query. Sealed.
type Query interface {
	queryNode()
}

// Predicate is a filter condition. Sealed.
type Predicate interface {
	predicateNode()
}

// Select reads Columns from one table.
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <order by>, id ASC LIMIT <limit>
type Select struct {
	From    string
	Columns []string  // required; no SELECT *
	Filter  Predicate // nil = all rows
	OrderBy []string  // extra leading sort columns, ascending
	Limit   int       // 0 = unlimited
}

func (Select) queryNode() {}

// Equals matches rows where Field equals a literal. Use IsNull for NULL.
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicateNode() {}

// In matches rows where Field is one of Values. An empty list matches
// nothing.
type In struct {
	Field  string
	Values []ir.Value
}

func (In) predicateNode() {}

// IsNull matches rows where Field is NULL, or not NULL when Not is set.
type IsNull struct {
	Field string
	Not   bool
}

func (IsNull) predicateNode() {}

// And matches rows satisfying every predicate. Empty is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
