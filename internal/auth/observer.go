// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/tollgate/tollgate/internal/auth")

// Observer receives operational events for metrics.
type Observer interface {
	// AuthOperation records the outcome of one service operation.
	AuthOperation(operation, outcome string)
	// CacheWriteFailed records an absorbed revocation cache failure.
	CacheWriteFailed(operation string)
	// SessionsRestored records cache entries rebuilt by reconciliation.
	SessionsRestored(n int)
}

type nopObserver struct{}

func (nopObserver) AuthOperation(string, string) {}
func (nopObserver) CacheWriteFailed(string)      {}
func (nopObserver) SessionsRestored(int)         {}

// Kind returns the error code naming the kind of err, "OK" for nil and
// "INTERNAL" for errors outside the taxonomy.
func Kind(err error) string {
	switch {
	case err == nil:
		return "OK"
	case errors.Is(err, ErrValidationFailed):
		return CodeValidationFailed
	case errors.Is(err, ErrAccountExists):
		return CodeAccountExists
	case errors.Is(err, ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(err, ErrTokenExpired):
		return CodeTokenExpired
	case errors.Is(err, ErrInvalidToken):
		return CodeInvalidToken
	case errors.Is(err, ErrTokenRevoked):
		return CodeTokenRevoked
	case errors.Is(err, ErrAccountNotFound):
		return CodeAccountNotFound
	case errors.Is(err, ErrInvalidOrExpiredToken):
		return CodeInvalidOrExpiredToken
	case errors.Is(err, ErrStoreUnavailable):
		return CodeStoreUnavailable
	case errors.Is(err, ErrCacheUnavailable):
		return CodeCacheUnavailable
	default:
		return "INTERNAL"
	}
}

// options holds settings shared by the services in this package.
type options struct {
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// Option configures a service.
type Option func(*options)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:   slog.Default(),
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// startOp opens a span for operation and returns a func that closes it and
// reports the outcome.
func (o *options) startOp(ctx context.Context, operation string) (context.Context, func(*error)) {
	ctx, span := tracer.Start(ctx, "auth."+operation)
	return ctx, func(errp *error) {
		err := *errp
		kind := Kind(err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, kind)
		}
		span.End()
		o.observer.AuthOperation(operation, strings.ToLower(kind))
	}
}
