package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Othello1111/edx-platform/internal/runtime"
)

// UserIDHeader carries the authenticated user's ID when a fronting proxy
// has already authenticated the request.
const UserIDHeader = "X-User-ID"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrNotAuthenticated   = errors.New("authentication credentials were not provided")
	ErrAuthenticationFail = errors.New("authentication failed")
)

// UserLookup finds users by ID. Implementations wrap ErrUserNotFound
// for unknown IDs.
type UserLookup interface {
	UserByID(ctx context.Context, id int64) (runtime.User, error)
}

// UserLookupFunc adapts a function to UserLookup.
type UserLookupFunc func(ctx context.Context, id int64) (runtime.User, error)

func (f UserLookupFunc) UserByID(ctx context.Context, id int64) (runtime.User, error) {
	return f(ctx, id)
}

// Authenticator resolves the session user of a request. Requests without
// credentials yield runtime.Anonymous and no error.
type Authenticator interface {
	Authenticate(r *http.Request) (runtime.User, error)
}

// HeaderAuthenticator trusts UserIDHeader.
type HeaderAuthenticator struct {
	Users UserLookup
}

func (a HeaderAuthenticator) Authenticate(r *http.Request) (runtime.User, error) {
	raw := r.Header.Get(UserIDHeader)
	if raw == "" {
		return runtime.Anonymous, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return runtime.User{}, fmt.Errorf("%w: bad %s header", ErrAuthenticationFail, UserIDHeader)
	}
	u, err := a.Users.UserByID(r.Context(), id)
	if errors.Is(err, ErrUserNotFound) {
		return runtime.User{}, fmt.Errorf("%w: unknown user %d", ErrAuthenticationFail, id)
	}
	if err != nil {
		return runtime.User{}, err
	}
	return u, nil
}
