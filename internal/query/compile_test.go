package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Othello1111/edx-platform/internal/ir"
)

func TestCompile_SimpleSelect(t *testing.T) {
	sql, params, err := Compile(Select{
		From:    "program_enrollments",
		Columns: []string{"id", "status"},
		Filter:  Equals{Field: "program_uuid", Value: ir.String("p-1")},
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, status FROM program_enrollments WHERE program_uuid = ? ORDER BY id ASC", sql)
	assert.Equal(t, []any{"p-1"}, params)
	assert.NotContains(t, sql, "p-1")
}

func TestCompile_Pointer(t *testing.T) {
	sql, _, err := Compile(&Select{From: "users", Columns: []string{"id"}})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM users ORDER BY id ASC", sql)
}

func TestCompile_Predicates(t *testing.T) {
	tests := []struct {
		name       string
		filter     Predicate
		wantWhere  string
		wantParams []any
	}{
		{
			name:       "int and bool params",
			filter:     And{Predicates: []Predicate{Equals{Field: "user_id", Value: ir.Int(7)}, Equals{Field: "active", Value: ir.Bool(true)}}},
			wantWhere:  "user_id = ? AND active = ?",
			wantParams: []any{int64(7), true},
		},
		{
			name:       "in",
			filter:     In{Field: "status", Values: []ir.Value{ir.String("enrolled"), ir.String("pending")}},
			wantWhere:  "status IN (?, ?)",
			wantParams: []any{"enrolled", "pending"},
		},
		{
			name:      "empty in matches nothing",
			filter:    In{Field: "status"},
			wantWhere: "0 = 1",
		},
		{
			name:      "is null",
			filter:    IsNull{Field: "user_id"},
			wantWhere: "user_id IS NULL",
		},
		{
			name:      "is not null",
			filter:    IsNull{Field: "user_id", Not: true},
			wantWhere: "user_id IS NOT NULL",
		},
		{
			name:      "empty and is always true",
			filter:    And{},
			wantWhere: "1 = 1",
		},
		{
			name: "nested and",
			filter: And{Predicates: []Predicate{
				Equals{Field: "a", Value: ir.Int(1)},
				And{Predicates: []Predicate{IsNull{Field: "b"}, Equals{Field: "c", Value: ir.String("x")}}},
			}},
			wantWhere:  "a = ? AND b IS NULL AND c = ?",
			wantParams: []any{int64(1), "x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := Compile(Select{From: "t", Columns: []string{"id"}, Filter: tt.filter})
			require.NoError(t, err)
			assert.Equal(t, "SELECT id FROM t WHERE "+tt.wantWhere+" ORDER BY id ASC", sql)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}

func TestCompile_OrderByAndLimit(t *testing.T) {
	sql, _, err := Compile(Select{
		From:    "program_course_enrollments",
		Columns: []string{"id", "course_key"},
		OrderBy: []string{"course_key", "id"},
		Limit:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, course_key FROM program_course_enrollments ORDER BY course_key ASC, id ASC LIMIT 10", sql)
}

func TestCompile_OrderByAlwaysEndsWithID(t *testing.T) {
	queries := []Select{
		{From: "t", Columns: []string{"id"}},
		{From: "t", Columns: []string{"id"}, Filter: IsNull{Field: "x"}},
		{From: "t", Columns: []string{"id"}, OrderBy: []string{"x"}},
	}
	for _, q := range queries {
		sql, _, err := Compile(q)
		require.NoError(t, err)
		assert.Regexp(t, `ORDER BY (.+ ASC, )?id ASC$`, sql)
	}
}

func TestCompile_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		q    Query
	}{
		{"nil query", nil},
		{"nil select pointer", (*Select)(nil)},
		{"no columns", Select{From: "t"}},
		{"injected table", Select{From: "t; DROP TABLE users", Columns: []string{"id"}}},
		{"injected column", Select{From: "t", Columns: []string{"id, password"}}},
		{"injected order", Select{From: "t", Columns: []string{"id"}, OrderBy: []string{"id DESC"}}},
		{"injected field", Select{From: "t", Columns: []string{"id"}, Filter: Equals{Field: "1=1 OR a", Value: ir.Int(1)}}},
		{"null value", Select{From: "t", Columns: []string{"id"}, Filter: Equals{Field: "a", Value: ir.Null{}}}},
		{"missing value", Select{From: "t", Columns: []string{"id"}, Filter: Equals{Field: "a"}}},
		{"list value", Select{From: "t", Columns: []string{"id"}, Filter: In{Field: "a", Values: []ir.Value{ir.List{}}}}},
		{"negative limit", Select{From: "t", Columns: []string{"id"}, Limit: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Compile(tt.q)
			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	err := Validate(Select{From: "bad table", Columns: []string{"bad column"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `table "bad table"`)
	assert.Contains(t, err.Error(), `column "bad column"`)
}
