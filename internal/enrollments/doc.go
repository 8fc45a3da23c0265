// Package enrollments stores program enrollments: which learners belong to
// which degree or certificate programs, and which course runs they take
// through each program.
//
// A program enrollment is created from a school's roster keyed by an
// external user key and is linked to a platform user later, or created
// directly for a platform user. Read-only queries can be served from a
// read replica (WithReadReplica). Query filters are built with package
// query and compiled to parameterized SQL.
//
// Program structure comes from a Catalog; grades from a Grader.
package enrollments
