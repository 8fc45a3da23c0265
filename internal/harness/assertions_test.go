package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Othello1111/edx-platform/internal/fielddata"
	"github.com/Othello1111/edx-platform/internal/ir"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Op: OpLoad, Block: "a", Usage: "lb:lib1:html:intro"},
		{Seq: 2, Op: OpGet, Block: "a", Field: "editor", Error: CodeUseDefault},
		{Seq: 3, Op: OpSet, Block: "a", Field: "display_name", Value: ir.String("x")},
		{Seq: 4, Op: OpLoad, Block: "b", Usage: "lb:lib1:html:intro"},
		{Seq: 5, Op: OpSave, Block: "a"},
	}
}

func intp(n int) *int { return &n }

func TestAssertTraceContains(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		found     bool
	}{
		{"op only", Assertion{Op: OpSave}, true},
		{"op and block", Assertion{Op: OpLoad, Block: "b"}, true},
		{"op and field", Assertion{Op: OpGet, Field: "editor"}, true},
		{"op and error", Assertion{Op: OpGet, Error: CodeUseDefault}, true},
		{"wrong block", Assertion{Op: OpSave, Block: "b"}, false},
		{"wrong error", Assertion{Op: OpGet, Error: CodeNotFound}, false},
		{"missing op", Assertion{Op: OpEvict}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.assertion.Type = AssertTraceContains
			err := assertTraceContains(sampleTrace(), tt.assertion)
			if tt.found {
				assert.NoError(t, err)
				return
			}
			var assertErr *AssertionError
			require.ErrorAs(t, err, &assertErr)
			assert.Equal(t, "trace_contains", assertErr.Type)
			assert.Equal(t, "not found in trace", assertErr.Actual)
		})
	}
}

func TestAssertTraceOrder_Correct(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{Type: AssertTraceOrder, Ops: []string{OpLoad, OpSet, OpSave}})
	assert.NoError(t, err)
}

func TestAssertTraceOrder_WrongOrder(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{Type: AssertTraceOrder, Ops: []string{OpSave, OpLoad}})
	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, "save (pos 5) should be before load (pos 1)", assertErr.Actual)
}

func TestAssertTraceOrder_MissingOp(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{Type: AssertTraceOrder, Ops: []string{OpLoad, OpEvict}})
	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, "missing op: evict", assertErr.Actual)
}

func TestAssertTraceCount(t *testing.T) {
	assert.NoError(t, assertTraceCount(sampleTrace(), Assertion{Op: OpLoad, Count: 2}))
	assert.NoError(t, assertTraceCount(sampleTrace(), Assertion{Op: OpLoad, Block: "a", Count: 1}))
	assert.NoError(t, assertTraceCount(sampleTrace(), Assertion{Op: OpEvict, Count: 0}))

	err := assertTraceCount(sampleTrace(), Assertion{Op: OpLoad, Count: 3})
	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, "3 occurrences of op load", assertErr.Expected)
	assert.Equal(t, "2 occurrences", assertErr.Actual)
}

func TestAssertFinalStats(t *testing.T) {
	result := &Result{Stats: fielddata.Stats{LoadedDefinitions: 2, ActiveBlocks: 1}}

	assert.NoError(t, assertFinalStats(result, Assertion{Loaded: intp(2), Active: intp(1)}))
	assert.NoError(t, assertFinalStats(result, Assertion{Loaded: intp(2)}))

	err := assertFinalStats(result, Assertion{Active: intp(3)})
	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, "3 active blocks", assertErr.Expected)
	assert.Equal(t, "1 active blocks", assertErr.Actual)
}

func TestEvaluateAssertions(t *testing.T) {
	result := &Result{Trace: sampleTrace()}
	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Op: OpSave},
		{Type: AssertTraceCount, Op: OpSave, Count: 2},
		{Type: "final_state"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "Assertion failed: trace_count")
	assert.Equal(t, `assertion[2]: unknown assertion type "final_state"`, errs[1])
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     "trace_contains",
		Expected: "op evict",
		Actual:   "not found in trace",
		Trace:    sampleTrace()[:2],
	}
	assert.Equal(t, "Assertion failed: trace_contains\n"+
		"  Expected: op evict\n"+
		"  Actual: not found in trace\n"+
		"\nFull trace:\n"+
		"  [1] load a lb:lib1:html:intro\n"+
		"  [2] get a editor !use_default\n", err.Error())
}
