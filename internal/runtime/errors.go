package runtime

import "errors"

var (
	ErrContextNotFound   = errors.New("learning context not found")
	ErrBlockNotFound     = errors.New("block not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrUnknownBlockType  = errors.New("unknown block type")
	ErrNoSuchHandler     = errors.New("no such handler")
	ErrReadOnlyRevision  = errors.New("definition is in an immutable bundle version")
	ErrInvalidFieldValue = errors.New("invalid field value")
	ErrRevisionChanged   = errors.New("definition changed while loading")
)
