// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package web serves the JSON HTTP API over the auth services.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tollgate/tollgate/internal/auth"
)

// SessionService is the part of auth.SessionManager the API calls.
type SessionService interface {
	Signup(ctx context.Context, name, email, password string) (*auth.Profile, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Verify(ctx context.Context, token string) (*auth.Profile, error)
	Logout(ctx context.Context, token string) error
}

// ResetService is the part of auth.PasswordResetService the API calls.
type ResetService interface {
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// RequestRecorder receives one observation per routed request.
type RequestRecorder interface {
	HTTPRequest(route string, status int, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) HTTPRequest(string, int, time.Duration) {}

// Config holds listener settings.
type Config struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// Server serves the API.
type Server struct {
	cfg       Config
	sessions  SessionService
	resets    ResetService
	validator *requestValidator
	origins   *originMatcher
	logger    *slog.Logger
	recorder  RequestRecorder
	handler   http.Handler

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder sets the per-request metrics hook.
func WithRecorder(recorder RequestRecorder) Option {
	return func(s *Server) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// NewServer builds the API server. Origin patterns are compiled here so a
// bad pattern fails startup.
func NewServer(cfg Config, sessions SessionService, resets ResetService, opts ...Option) (*Server, error) {
	if sessions == nil {
		return nil, oops.Errorf("session service is required")
	}
	if resets == nil {
		return nil, oops.Errorf("reset service is required")
	}
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	origins, err := newOriginMatcher(cfg.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		sessions:  sessions,
		resets:    resets,
		validator: validator,
		origins:   origins,
		logger:    slog.Default(),
		recorder:  nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the fully wrapped API handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "POST /signup", s.handleSignup)
	s.route(mux, "POST /login", s.handleLogin)
	s.route(mux, "GET /verify", s.handleVerify)
	s.route(mux, "POST /logout", s.handleLogout)
	s.route(mux, "POST /forgot-password", s.handleForgotPassword)
	s.route(mux, "POST /reset-password", s.handleResetPassword)
	s.route(mux, "GET /health", s.handleHealth)

	// Outermost first: tracing, request id, access log, recover, CORS.
	var h http.Handler = mux
	h = corsMiddleware(s.origins, h)
	h = recoverMiddleware(s.logger, h)
	h = accessLogMiddleware(s.logger, h)
	h = requestIDMiddleware(h)
	return otelhttp.NewHandler(h, "tollgate.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// route registers h under pattern and reports each request to the
// recorder labelled with the pattern.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)
		defer func() {
			s.recorder.HTTPRequest(pattern, rec.status, time.Since(start))
		}()
		h(rec, r)
	}))
}

// Start begins serving. The returned channel receives a serve error, if
// any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("http server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("HTTP_LISTEN_FAILED").With("addr", s.cfg.Addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("http server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop drains in-flight requests until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_http_server").Wrap(err)
		}
	}
	s.logger.Info("http server stopped")
	return nil
}

// Addr returns the listening address, or "" when not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
