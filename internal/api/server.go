package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Othello1111/edx-platform/internal/blockstore"
	"github.com/Othello1111/edx-platform/internal/fielddata"
	"github.com/Othello1111/edx-platform/internal/ir"
	"github.com/Othello1111/edx-platform/internal/runtime"
)

const (
	routePrefix = "/api/xblock/v2/xblocks/"

	// maxBodyBytes bounds handler request bodies.
	maxBodyBytes = 1 << 20
)

// Server serves the XBlock REST API.
type Server struct {
	rt       *runtime.Runtime
	signer   *TokenSigner
	users    UserLookup
	auth     Authenticator
	baseURL  string
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *apiMetrics
	mux      *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithBaseURL sets the scheme and host prepended to handler URLs,
// e.g. "https://lms.example.com". Default is a host-relative URL.
func WithBaseURL(u string) Option {
	return func(s *Server) {
		s.baseURL = u
	}
}

// WithAuthenticator replaces the default HeaderAuthenticator.
func WithAuthenticator(a Authenticator) Option {
	return func(s *Server) {
		s.auth = a
	}
}

// WithRegistry exposes metrics through reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// New creates a server and registers its routes and metrics.
func New(rt *runtime.Runtime, signer *TokenSigner, users UserLookup, opts ...Option) (*Server, error) {
	s := &Server{
		rt:      rt,
		signer:  signer,
		users:   users,
		auth:    HeaderAuthenticator{Users: users},
		logger:  slog.Default(),
		metrics: newAPIMetrics(),
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	collectors := append(s.metrics.collectors(), rt.Fields().Collectors()...)
	for _, c := range collectors {
		if err := s.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	s.mux.Handle("GET "+routePrefix+"{usage_key}/{$}",
		s.metrics.instrument("block_metadata", s.handleMetadata))
	s.mux.Handle("GET "+routePrefix+"{usage_key}/handler_url/{handler_name}/{$}",
		s.metrics.instrument("handler_url", s.handleHandlerURL))
	s.mux.Handle(routePrefix+"{usage_key}/handler/{user_id}/{secure_token}/{handler_name}/{suffix...}",
		s.metrics.instrument("xblock_handler", s.handleXBlockHandler))
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server starting", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// HandlerURL returns the token-authenticated URL for calling handler on
// usage as userID.
func (s *Server) HandlerURL(usage ir.UsageKey, handler string, userID int64) string {
	token := s.signer.Token(userID, usage.String())
	return fmt.Sprintf("%s%s%s/handler/%d/%s/%s/", s.baseURL, routePrefix, usage, userID, token, handler)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	usage, err := ir.ParseUsageKey(r.PathValue("usage_key"))
	if err != nil {
		s.writeError(w, r, badRequest(err))
		return
	}
	user, err := s.auth.Authenticate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.rt.LoadBlock(r.Context(), usage, user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer b.Release()

	md, err := b.Metadata(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, md)
}

func (s *Server) handleHandlerURL(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.Authenticate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !user.IsAuthenticated() {
		s.writeError(w, r, ErrNotAuthenticated)
		return
	}
	usage, err := ir.ParseUsageKey(r.PathValue("usage_key"))
	if err != nil {
		s.writeError(w, r, badRequest(err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"handler_url": s.HandlerURL(usage, r.PathValue("handler_name"), user.ID),
	})
}

func (s *Server) handleXBlockHandler(w http.ResponseWriter, r *http.Request) {
	// Sandboxed frontends call handlers cross-origin.
	w.Header().Set("Access-Control-Allow-Origin", "*")

	userID, err := strconv.ParseInt(r.PathValue("user_id"), 10, 64)
	if err != nil || userID < 0 {
		s.writeError(w, r, badRequest(fmt.Errorf("invalid user id %q", r.PathValue("user_id"))))
		return
	}
	usage, err := ir.ParseUsageKey(r.PathValue("usage_key"))
	if err != nil {
		s.writeError(w, r, badRequest(err))
		return
	}
	if !s.signer.Validate(userID, usage.String(), r.PathValue("secure_token")) {
		s.writeError(w, r, &httpError{status: http.StatusForbidden, detail: "Invalid/expired auth token."})
		return
	}

	user, err := s.handlerUser(r, userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, badRequest(fmt.Errorf("read body: %w", err)))
		return
	}

	b, err := s.rt.LoadBlock(r.Context(), usage, user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer b.Release()

	resp, err := s.rt.Handle(r.Context(), b, r.PathValue("handler_name"), runtime.HandlerRequest{
		Method: r.Method,
		Suffix: r.PathValue("suffix"),
		Body:   body,
		User:   user,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

// handlerUser resolves the user a handler call runs as. The token names
// the user; a session user, if any, must agree with it.
func (s *Server) handlerUser(r *http.Request, tokenUserID int64) (runtime.User, error) {
	session, err := s.auth.Authenticate(r)
	if err != nil {
		return runtime.User{}, err
	}
	if session.IsAuthenticated() {
		if session.ID != tokenUserID {
			return runtime.User{}, &httpError{status: http.StatusUnauthorized, detail: "Authentication conflict."}
		}
		return session, nil
	}
	if tokenUserID == 0 {
		return runtime.Anonymous, nil
	}
	return s.users.UserByID(r.Context(), tokenUserID)
}

type httpError struct {
	status int
	detail string
}

func (e *httpError) Error() string { return e.detail }

func badRequest(err error) error {
	return &httpError{status: http.StatusBadRequest, detail: err.Error()}
}

// statusFor maps an error to its HTTP status and client-facing detail.
func statusFor(err error) (int, string) {
	var he *httpError
	switch {
	case errors.As(err, &he):
		return he.status, he.detail
	case errors.Is(err, ErrNotAuthenticated):
		return http.StatusUnauthorized, "Authentication credentials were not provided."
	case errors.Is(err, ErrAuthenticationFail):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, runtime.ErrPermissionDenied):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, runtime.ErrBlockNotFound),
		errors.Is(err, runtime.ErrContextNotFound),
		errors.Is(err, runtime.ErrNoSuchHandler),
		errors.Is(err, runtime.ErrUnknownBlockType),
		errors.Is(err, blockstore.ErrDefinitionNotFound),
		errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, runtime.ErrInvalidFieldValue),
		errors.Is(err, runtime.ErrReadOnlyRevision),
		errors.Is(err, fielddata.ErrUnknownField),
		errors.Is(err, fielddata.ErrInvalidScope):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, runtime.ErrRevisionChanged):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	s.writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", "error", err)
	}
}
