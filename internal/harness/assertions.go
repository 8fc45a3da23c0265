package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, event)
		}
	}

	return buf.String()
}

// matches reports whether event satisfies the assertion's filters. Empty
// filters match anything.
func (a Assertion) matches(event TraceEvent) bool {
	return event.Op == a.Op &&
		(a.Block == "" || event.Block == a.Block) &&
		(a.Field == "" || event.Field == a.Field) &&
		(a.Error == "" || event.Error == a.Error)
}

func (a Assertion) describe() string {
	parts := []string{"op " + a.Op}
	if a.Block != "" {
		parts = append(parts, "block "+a.Block)
	}
	if a.Field != "" {
		parts = append(parts, "field "+a.Field)
	}
	if a.Error != "" {
		parts = append(parts, "error "+a.Error)
	}
	return strings.Join(parts, ", ")
}

// assertTraceContains checks that some event matches the assertion.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if assertion.matches(event) {
			return nil
		}
	}

	return &AssertionError{
		Type:     "trace_contains",
		Expected: assertion.describe(),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if ops first appear in the specified order.
// Ops don't need to be consecutive (intervening steps are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Op]; !seen {
			positions[event.Op] = i + 1 // 1-indexed for readability
		}
	}

	for _, op := range assertion.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     "trace_order",
				Expected: fmt.Sprintf("all ops present: %v", assertion.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Ops); i++ {
		prev := assertion.Ops[i-1]
		curr := assertion.Ops[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     "trace_order",
				Expected: fmt.Sprintf("ops in order: %v", assertion.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks that exactly Count events match the assertion.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if assertion.matches(event) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     "trace_count",
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.describe()),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalStats checks the field cache sizes at the end of the run.
func assertFinalStats(result *Result, assertion Assertion) error {
	if assertion.Loaded != nil && *assertion.Loaded != result.Stats.LoadedDefinitions {
		return &AssertionError{
			Type:     "final_stats",
			Expected: fmt.Sprintf("%d loaded definitions", *assertion.Loaded),
			Actual:   fmt.Sprintf("%d loaded definitions", result.Stats.LoadedDefinitions),
		}
	}
	if assertion.Active != nil && *assertion.Active != result.Stats.ActiveBlocks {
		return &AssertionError{
			Type:     "final_stats",
			Expected: fmt.Sprintf("%d active blocks", *assertion.Active),
			Actual:   fmt.Sprintf("%d active blocks", result.Stats.ActiveBlocks),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalStats:
			err = assertFinalStats(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
