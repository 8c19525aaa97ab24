// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package cache

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connect opens a client for the redis:// URL and pings it with backoff.
func Connect(ctx context.Context, url string, backoff retry.Backoff, logger *slog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("CACHE_CONFIG_INVALID").With("operation", "parse redis URL").Wrap(err)
	}
	rdb := redis.NewClient(opts)

	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.WarnContext(ctx, "redis not reachable yet", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = rdb.Close() //nolint:errcheck // ping error takes precedence
		return nil, oops.Code("CACHE_CONNECT_FAILED").With("operation", "ping").With("attempts", attempt).Wrap(err)
	}

	logger.InfoContext(ctx, "connected to redis", "addr", opts.Addr, "db", opts.DB)
	return rdb, nil
}
