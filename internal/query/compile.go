package query

import (
	"fmt"
	"strings"

	"github.com/Othello1111/edx-platform/internal/ir"
)

// Compile converts q to parameterized SQL. The query is validated first.
//
// MANDATORY: every query ends in ORDER BY with id as the final tiebreaker.
// MANDATORY: values are parameters, never interpolated.
func Compile(q Query) (string, []any, error) {
	if err := Validate(q); err != nil {
		return "", nil, err
	}
	switch q := q.(type) {
	case Select:
		return compileSelect(q)
	case *Select:
		return compileSelect(*q)
	default:
		return "", nil, fmt.Errorf("%w: unsupported query type %T", ErrInvalidQuery, q)
	}
}

func compileSelect(s Select) (string, []any, error) {
	var (
		sb     strings.Builder
		params []any
	)
	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(s.Columns, ", "), s.From)

	if s.Filter != nil {
		where, p, err := compilePredicate(s.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
		params = p
	}

	sb.WriteString(" ORDER BY ")
	for _, c := range s.OrderBy {
		if c == "id" {
			continue
		}
		sb.WriteString(c)
		sb.WriteString(" ASC, ")
	}
	sb.WriteString("id ASC")

	if s.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", s.Limit)
	}
	return sb.String(), params, nil
}

func compilePredicate(p Predicate) (string, []any, error) {
	switch p := p.(type) {
	case Equals:
		param, err := toParam(p.Value)
		if err != nil {
			return "", nil, err
		}
		return p.Field + " = ?", []any{param}, nil

	case In:
		if len(p.Values) == 0 {
			return "0 = 1", nil, nil
		}
		params := make([]any, 0, len(p.Values))
		for _, v := range p.Values {
			param, err := toParam(v)
			if err != nil {
				return "", nil, err
			}
			params = append(params, param)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(params)), ", ")
		return fmt.Sprintf("%s IN (%s)", p.Field, placeholders), params, nil

	case IsNull:
		if p.Not {
			return p.Field + " IS NOT NULL", nil, nil
		}
		return p.Field + " IS NULL", nil, nil

	case And:
		if len(p.Predicates) == 0 {
			return "1 = 1", nil, nil
		}
		parts := make([]string, 0, len(p.Predicates))
		var params []any
		for _, sub := range p.Predicates {
			sql, subParams, err := compilePredicate(sub)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			params = append(params, subParams...)
		}
		return strings.Join(parts, " AND "), params, nil

	default:
		return "", nil, fmt.Errorf("%w: unsupported predicate type %T", ErrInvalidQuery, p)
	}
}

// toParam converts a scalar ir.Value to a driver parameter.
func toParam(v ir.Value) (any, error) {
	switch v := v.(type) {
	case ir.String:
		return string(v), nil
	case ir.Int:
		return int64(v), nil
	case ir.Bool:
		return bool(v), nil
	default:
		return nil, fmt.Errorf("%w: %T cannot be a SQL parameter", ErrInvalidQuery, v)
	}
}
