// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Reconciler defaults.
const (
	DefaultReconcileBatchSize = 500
	DefaultReconcileRetention = 24 * time.Hour
)

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Scanned        int
	Restored       int
	PurgedSessions int64
	PurgedResets   int64
}

// Reconciler rebuilds revocation cache entries from live session rows.
// The cache is a projection of the sessions table; a pass only adds
// missing entries and never overwrites or deletes existing ones.
type Reconciler struct {
	sessions  SessionRepository
	resets    PasswordResetRepository
	cache     RevocationCache
	batchSize int
	retention time.Duration
	backoff   func() retry.Backoff
	options
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithBatchSize sets the page size used to scan sessions.
func WithBatchSize(n int) ReconcilerOption {
	return func(r *Reconciler) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithRetention sets how long expired rows are kept before purging.
// Zero disables purging.
func WithRetention(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) { r.retention = d }
}

// WithBackoff sets the retry policy for a pass.
func WithBackoff(newBackoff func() retry.Backoff) ReconcilerOption {
	return func(r *Reconciler) { r.backoff = newBackoff }
}

// WithReconcilerOptions applies shared service options.
func WithReconcilerOptions(opts ...Option) ReconcilerOption {
	return func(r *Reconciler) {
		for _, opt := range opts {
			opt(&r.options)
		}
	}
}

// NewReconciler creates a Reconciler. resets may be nil, in which case
// reset rows are not purged.
func NewReconciler(
	sessions SessionRepository,
	resets PasswordResetRepository,
	cache RevocationCache,
	opts ...ReconcilerOption,
) (*Reconciler, error) {
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if cache == nil {
		return nil, oops.Errorf("revocation cache is required")
	}
	r := &Reconciler{
		sessions:  sessions,
		resets:    resets,
		cache:     cache,
		batchSize: DefaultReconcileBatchSize,
		retention: DefaultReconcileRetention,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
		},
		options: newOptions(nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Reconcile runs a single pass without retries.
func (r *Reconciler) Reconcile(ctx context.Context) (res ReconcileResult, err error) {
	ctx, done := r.startOp(ctx, "reconcile")
	defer done(&err)

	now := r.now()
	var afterID int64
	for {
		page, err := r.sessions.ListActive(ctx, now, afterID, r.batchSize)
		if err != nil {
			return res, oops.With("operation", "list active sessions").With("after_id", afterID).Wrap(err)
		}

		for i := range page {
			s := &page[i]
			res.Scanned++
			ttl := s.ExpiresAt.Sub(now)
			if ttl <= 0 {
				continue
			}
			restored, err := r.cache.Restore(ctx, s.TokenID, CacheEntry{AccountID: s.AccountID, Email: s.Email}, ttl)
			if err != nil {
				return res, oops.With("operation", "restore cache entry").With("session_id", s.ID).Wrap(err)
			}
			if !restored {
				continue
			}
			// A logout may have revoked the row after the page was read and
			// deleted the key before Restore wrote it back.
			live, err := r.sessions.IsActive(ctx, s.TokenID)
			if err != nil {
				return res, oops.With("operation", "recheck session").With("session_id", s.ID).Wrap(err)
			}
			if !live {
				if err := r.cache.Delete(ctx, s.TokenID); err != nil {
					return res, oops.With("operation", "drop revoked cache entry").With("session_id", s.ID).Wrap(err)
				}
				r.logger.InfoContext(ctx, "session revoked during reconciliation", "session_id", s.ID)
				continue
			}
			res.Restored++
		}

		if len(page) < r.batchSize {
			break
		}
		afterID = page[len(page)-1].ID
	}
	r.observer.SessionsRestored(res.Restored)

	if r.retention > 0 {
		cutoff := now.Add(-r.retention)
		if res.PurgedSessions, err = r.sessions.DeleteExpired(ctx, cutoff); err != nil {
			return res, oops.With("operation", "purge sessions").Wrap(err)
		}
		if r.resets != nil {
			if res.PurgedResets, err = r.resets.DeleteExpired(ctx, cutoff); err != nil {
				return res, oops.With("operation", "purge resets").Wrap(err)
			}
		}
	}

	r.logger.InfoContext(ctx, "reconciliation pass finished",
		"scanned", res.Scanned,
		"restored", res.Restored,
		"purged_sessions", res.PurgedSessions,
		"purged_resets", res.PurgedResets,
	)
	return res, nil
}

// ReconcileWithRetry runs a pass, retrying failed passes with backoff.
func (r *Reconciler) ReconcileWithRetry(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		var err error
		res, err = r.Reconcile(ctx)
		if err != nil {
			r.logger.WarnContext(ctx, "reconciliation pass failed", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return res, oops.With("operation", "reconcile").Wrap(err)
	}
	return res, nil
}

// Run reconciles every interval until ctx is done. Failed passes are
// logged and retried on the next tick.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.ReconcileWithRetry(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "reconciliation failed", "error", err)
			}
		}
	}
}
