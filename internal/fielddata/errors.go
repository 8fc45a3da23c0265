package fielddata

import (
	"errors"
	"fmt"
)

var (
	// ErrUseDefault is a control signal, not a failure: no override or
	// loaded value exists and the caller should substitute the field's
	// schema default.
	ErrUseDefault = errors.New("use default value")

	// ErrInvalidScope reports access to a field whose scope this store
	// cannot hold.
	ErrInvalidScope = errors.New("invalid field scope")

	// ErrUnknownField reports access to a name the block does not declare.
	ErrUnknownField = errors.New("unknown field")

	// ErrNoInstanceKey reports a block that has no instance key.
	ErrNoInstanceKey = errors.New("block has no instance key")
)

// ScopeError describes a rejected field access.
type ScopeError struct {
	Field  string
	Scope  string
	Reason string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("field %q (scope %s): %s", e.Field, e.Scope, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidScope) hold.
func (e *ScopeError) Unwrap() error {
	return ErrInvalidScope
}

// IsUseDefault reports whether err asks for the schema default.
func IsUseDefault(err error) bool {
	return errors.Is(err, ErrUseDefault)
}
