// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package observability

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"
)

// PingFunc checks one dependency.
type PingFunc func(ctx context.Context) error

// Readiness is closed until MarkReady is called, then open while every
// dependency answers its ping within the timeout.
type Readiness struct {
	ready   atomic.Bool
	names   []string
	pings   map[string]PingFunc
	timeout time.Duration
	logger  *slog.Logger
}

// NewReadiness creates a gate over the named pings.
func NewReadiness(timeout time.Duration, logger *slog.Logger, pings map[string]PingFunc) *Readiness {
	if logger == nil {
		logger = slog.Default()
	}
	names := make([]string, 0, len(pings))
	for name := range pings {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Readiness{names: names, pings: pings, timeout: timeout, logger: logger}
}

// MarkReady opens the gate once startup work has finished.
func (r *Readiness) MarkReady() {
	r.ready.Store(true)
}

// Check runs every ping and reports whether the service can take traffic.
// It satisfies ReadinessChecker.
func (r *Readiness) Check(ctx context.Context) bool {
	if !r.ready.Load() {
		return false
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	ok := true
	for _, name := range r.names {
		if err := r.pings[name](ctx); err != nil {
			r.logger.WarnContext(ctx, "readiness ping failed", "dependency", name, "error", err)
			ok = false
		}
	}
	return ok
}
