package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Othello1111/edx-platform/internal/blockstore"
	"github.com/Othello1111/edx-platform/internal/fielddata"
	"github.com/Othello1111/edx-platform/internal/ir"
	"github.com/Othello1111/edx-platform/internal/runtime"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq    int64    `json:"seq"`
	Op     string   `json:"op"`
	Block  string   `json:"block,omitempty"`
	Usage  string   `json:"usage,omitempty"`
	Field  string   `json:"field,omitempty"`
	Bundle string   `json:"bundle,omitempty"`
	Path   string   `json:"path,omitempty"`
	Value  ir.Value `json:"value,omitempty"`
	Result ir.Value `json:"result,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Canonical returns the event as a Dict, omitting empty members.
func (e TraceEvent) Canonical() ir.Dict {
	d := ir.Dict{
		"seq": ir.Int(e.Seq),
		"op":  ir.String(e.Op),
	}
	for k, v := range map[string]string{
		"block":  e.Block,
		"usage":  e.Usage,
		"field":  e.Field,
		"bundle": e.Bundle,
		"path":   e.Path,
		"error":  e.Error,
	} {
		if v != "" {
			d[k] = ir.String(v)
		}
	}
	if e.Value != nil {
		d["value"] = e.Value
	}
	if e.Result != nil {
		d["result"] = e.Result
	}
	return d
}

// String renders the event for failure messages.
func (e TraceEvent) String() string {
	var b strings.Builder
	b.WriteString(e.Op)
	for _, s := range []string{e.Block, e.Usage, e.Field, e.Bundle, e.Path} {
		if s != "" {
			b.WriteByte(' ')
			b.WriteString(s)
		}
	}
	switch {
	case e.Error != "":
		fmt.Fprintf(&b, " !%s", e.Error)
	case e.Result != nil:
		data, _ := ir.MarshalCanonical(e.Result)
		fmt.Fprintf(&b, " = %s", data)
	}
	return b.String()
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step met its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Stats are the field cache sizes after the last step.
	Stats fielddata.Stats `json:"stats"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Error codes a step can report.
const (
	CodeUseDefault       = "use_default"
	CodeUnknownField     = "unknown_field"
	CodeInvalidScope     = "invalid_scope"
	CodeInvalidValue     = "invalid_value"
	CodePermissionDenied = "permission_denied"
	CodeReadOnly         = "read_only"
	CodeNotFound         = "not_found"
	CodeNoBlock          = "no_block"
	CodeError            = "error"
)

var errorCodes = []string{
	CodeUseDefault, CodeUnknownField, CodeInvalidScope, CodeInvalidValue,
	CodePermissionDenied, CodeReadOnly, CodeNotFound, CodeNoBlock, CodeError,
}

var errNoBlock = errors.New("no block under alias")

// ErrorCode classifies err into one of the step error codes.
// Returns "" for a nil error.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case fielddata.IsUseDefault(err):
		return CodeUseDefault
	case errors.Is(err, fielddata.ErrUnknownField):
		return CodeUnknownField
	case errors.Is(err, fielddata.ErrInvalidScope):
		return CodeInvalidScope
	case errors.Is(err, runtime.ErrInvalidFieldValue):
		return CodeInvalidValue
	case errors.Is(err, runtime.ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, runtime.ErrReadOnlyRevision):
		return CodeReadOnly
	case errors.Is(err, runtime.ErrBlockNotFound),
		errors.Is(err, runtime.ErrContextNotFound),
		errors.Is(err, runtime.ErrUnknownBlockType),
		errors.Is(err, blockstore.ErrDefinitionNotFound):
		return CodeNotFound
	case errors.Is(err, errNoBlock):
		return CodeNoBlock
	}
	return CodeError
}
