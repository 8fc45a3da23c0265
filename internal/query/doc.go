// Package query is a small typed query representation compiled to
// parameterized SQLite SQL.
//
// A Select names a table, explicit columns and an optional filter:
//
//	query.Select{
//	  From:    "program_enrollments",
//	  Columns: []string{"id", "status"},
//	  Filter: query.And{Predicates: []query.Predicate{
//	    query.Equals{Field: "program_uuid", Value: ir.String(program)},
//	    query.In{Field: "status", Values: []ir.Value{ir.String("enrolled")}},
//	  }},
//	}
//
// compiles to
//
//	SELECT id, status FROM program_enrollments
//	WHERE program_uuid = ? AND status IN (?) ORDER BY id ASC
//
// RULES:
//   - Values are always bound as parameters, never interpolated.
//   - Table and column names must be plain identifiers; Validate rejects
//     anything else before it reaches SQL text.
//   - Every compiled query ends in ORDER BY ..., id ASC so results are
//     deterministic.
//   - An In with no values matches nothing.
//
// Query and Predicate are sealed interfaces using the marker method
// pattern, so compilers can switch over them exhaustively.
package query
