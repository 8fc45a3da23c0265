package query

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/Othello1111/edx-platform/internal/ir"
)

// ErrInvalidQuery is returned for queries that cannot be compiled safely.
var ErrInvalidQuery = errors.New("invalid query")

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks that q only names plain identifiers, selects explicit
// columns and compares against scalar values.
//
// Validate is a pure function with no side effects.
func Validate(q Query) error {
	v := &validator{}
	v.query(q)
	return errors.Join(v.errs...)
}

type validator struct {
	errs []error
}

func (v *validator) fail(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...)))
}

func (v *validator) ident(kind, name string) {
	if !identifier.MatchString(name) {
		v.fail("%s %q is not a plain identifier", kind, name)
	}
}

func (v *validator) query(q Query) {
	switch q := q.(type) {
	case Select:
		v.sel(q)
	case *Select:
		if q == nil {
			v.fail("nil select")
			return
		}
		v.sel(*q)
	case nil:
		v.fail("nil query")
	default:
		v.fail("unsupported query type %T", q)
	}
}

func (v *validator) sel(s Select) {
	v.ident("table", s.From)
	if len(s.Columns) == 0 {
		v.fail("select from %s names no columns", s.From)
	}
	for _, c := range s.Columns {
		v.ident("column", c)
	}
	for _, c := range s.OrderBy {
		v.ident("order column", c)
	}
	if s.Limit < 0 {
		v.fail("negative limit %d", s.Limit)
	}
	if s.Filter != nil {
		v.predicate(s.Filter)
	}
}

func (v *validator) predicate(p Predicate) {
	switch p := p.(type) {
	case Equals:
		v.ident("field", p.Field)
		v.scalar(p.Field, p.Value)
	case In:
		v.ident("field", p.Field)
		for _, val := range p.Values {
			v.scalar(p.Field, val)
		}
	case IsNull:
		v.ident("field", p.Field)
	case And:
		for _, sub := range p.Predicates {
			v.predicate(sub)
		}
	case nil:
		v.fail("nil predicate")
	default:
		v.fail("unsupported predicate type %T", p)
	}
}

func (v *validator) scalar(field string, val ir.Value) {
	switch val.(type) {
	case ir.String, ir.Int, ir.Bool:
	case ir.Null, nil:
		v.fail("field %s compared to NULL; use IsNull", field)
	default:
		v.fail("field %s compared to non-scalar %T", field, val)
	}
}
