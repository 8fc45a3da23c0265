package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Othello1111/edx-platform/internal/fielddata"
	"github.com/Othello1111/edx-platform/internal/ir"
)

// AnyBlockType registers a handler for every block type.
const AnyBlockType = "*"

// HandlerRequest is a handler invocation.
type HandlerRequest struct {
	Method string
	Suffix string
	Body   []byte
	User   User
}

// HandlerResponse is a handler's reply.
type HandlerResponse struct {
	Status      int
	ContentType string
	Body        []byte
}

// HandlerFunc implements a block handler.
type HandlerFunc func(ctx context.Context, b *Block, req HandlerRequest) (HandlerResponse, error)

type handlerKey struct {
	blockType string
	name      string
}

// RegisterHandler adds a handler for blockType, or for every type when
// blockType is AnyBlockType. Type-specific handlers win.
func (r *Runtime) RegisterHandler(blockType, name string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[handlerKey{blockType, name}] = fn
}

// Handle runs the named handler on b.
func (r *Runtime) Handle(ctx context.Context, b *Block, name string, req HandlerRequest) (HandlerResponse, error) {
	r.mu.RLock()
	fn, ok := r.handlers[handlerKey{b.bt.Name, name}]
	if !ok {
		fn, ok = r.handlers[handlerKey{AnyBlockType, name}]
	}
	r.mu.RUnlock()
	if !ok {
		return HandlerResponse{}, fmt.Errorf("%w: %s on %s", ErrNoSuchHandler, name, b.bt.Name)
	}
	r.logger.Debug("running handler", "usage", b.usage, "handler", name, "user", req.User.ID)
	return fn(ctx, b, req)
}

// JSONResponse encodes v as a 200 JSON reply.
func JSONResponse(v any) (HandlerResponse, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return HandlerResponse{}, fmt.Errorf("encode response: %w", err)
	}
	return HandlerResponse{Status: http.StatusOK, ContentType: "application/json", Body: body}, nil
}

func (r *Runtime) registerBuiltinHandlers() {
	r.RegisterHandler(AnyBlockType, "get_fields", getFieldsHandler)
	r.RegisterHandler(AnyBlockType, "set_fields", r.setFieldsHandler)
}

func getFieldsHandler(ctx context.Context, b *Block, req HandlerRequest) (HandlerResponse, error) {
	fields, err := b.StoredFields(ctx)
	if err != nil {
		return HandlerResponse{}, err
	}
	return JSONResponse(fields)
}

// setFieldsHandler applies a JSON object of field values and saves the
// block back to its draft when saving is configured.
func (r *Runtime) setFieldsHandler(ctx context.Context, b *Block, req HandlerRequest) (HandlerResponse, error) {
	if req.Method == http.MethodGet {
		return HandlerResponse{Status: http.StatusMethodNotAllowed, ContentType: "text/plain", Body: []byte("use POST")}, nil
	}
	allowed, err := b.lc.CanEditBlock(ctx, req.User, b.usage)
	if err != nil {
		return HandlerResponse{}, err
	}
	if !allowed {
		return HandlerResponse{}, fmt.Errorf("%w: user %d cannot edit %s", ErrPermissionDenied, req.User.ID, b.usage)
	}

	v, err := ir.UnmarshalValue(req.Body)
	if err != nil {
		return HandlerResponse{}, fmt.Errorf("%w: %w", ErrInvalidFieldValue, err)
	}
	updates, ok := v.(ir.Dict)
	if !ok {
		return HandlerResponse{}, fmt.Errorf("%w: body must be a JSON object", ErrInvalidFieldValue)
	}
	for _, name := range updates.SortedKeys() {
		if name == fielddata.ChildrenField {
			return HandlerResponse{}, fmt.Errorf("%w: children cannot be set directly", ErrInvalidFieldValue)
		}
		if err := b.SetField(ctx, name, updates[name]); err != nil {
			return HandlerResponse{}, err
		}
	}

	if r.writer != nil {
		saved, err := r.SaveBlock(ctx, b)
		if err != nil {
			return HandlerResponse{}, err
		}
		defer saved.Release()
		b = saved
	}
	return getFieldsHandler(ctx, b, req)
}
