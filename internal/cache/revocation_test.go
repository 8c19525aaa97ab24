// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package cache_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tollgate/tollgate/internal/auth"
	"github.com/tollgate/tollgate/internal/cache"
	"github.com/tollgate/tollgate/pkg/errutil"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, *cache.RevocationCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, cache.NewRevocationCache(rdb, "")
}

func TestRevocationCache_PutGet(t *testing.T) {
	mr, c := newTestCache(t)
	ctx := context.Background()
	entry := auth.CacheEntry{AccountID: 42, Email: "ana@x.io"}

	require.NoError(t, c.Put(ctx, "jti-1", entry, time.Hour))

	got, err := c.Get(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, entry, *got)

	raw, err := mr.Get("token:jti-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":42,"email":"ana@x.io"}`, raw)
	assert.Equal(t, time.Hour, mr.TTL("token:jti-1"))
}

func TestRevocationCache_GetMissIsNotFound(t *testing.T) {
	_, c := newTestCache(t)

	_, err := c.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestRevocationCache_EntryExpiresWithTTL(t *testing.T) {
	mr, c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "jti-1", auth.CacheEntry{AccountID: 1}, time.Minute))
	mr.FastForward(time.Minute + time.Second)

	_, err := c.Get(ctx, "jti-1")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestRevocationCache_PutSkipsNonPositiveTTL(t *testing.T) {
	mr, c := newTestCache(t)

	require.NoError(t, c.Put(context.Background(), "jti-1", auth.CacheEntry{AccountID: 1}, 0))
	assert.False(t, mr.Exists("token:jti-1"))
}

func TestRevocationCache_Delete(t *testing.T) {
	_, c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "jti-1", auth.CacheEntry{AccountID: 1}, time.Hour))
	require.NoError(t, c.Delete(ctx, "jti-1"))

	_, err := c.Get(ctx, "jti-1")
	assert.ErrorIs(t, err, auth.ErrNotFound)

	// Deleting again is a no-op.
	require.NoError(t, c.Delete(ctx, "jti-1"))
}

func TestRevocationCache_Restore(t *testing.T) {
	mr, c := newTestCache(t)
	ctx := context.Background()

	restored, err := c.Restore(ctx, "jti-1", auth.CacheEntry{AccountID: 1, Email: "a@x.io"}, time.Hour)
	require.NoError(t, err)
	assert.True(t, restored)

	// An existing entry is left alone.
	restored, err = c.Restore(ctx, "jti-1", auth.CacheEntry{AccountID: 2, Email: "b@x.io"}, time.Minute)
	require.NoError(t, err)
	assert.False(t, restored)

	got, err := c.Get(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.AccountID)
	assert.Equal(t, time.Hour, mr.TTL("token:jti-1"))
}

func TestRevocationCache_CustomPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	c := cache.NewRevocationCache(rdb, "tg:")

	require.NoError(t, c.Put(context.Background(), "jti-1", auth.CacheEntry{AccountID: 1}, time.Hour))
	assert.True(t, mr.Exists("tg:jti-1"))
}

func TestRevocationCache_CorruptEntry(t *testing.T) {
	mr, c := newTestCache(t)
	require.NoError(t, mr.Set("token:jti-1", "not json"))

	_, err := c.Get(context.Background(), "jti-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrCacheUnavailable)
}

func TestRevocationCache_Unavailable(t *testing.T) {
	mr, c := newTestCache(t)
	ctx := context.Background()
	mr.Close()

	err := c.Put(ctx, "jti-1", auth.CacheEntry{AccountID: 1}, time.Hour)
	assert.ErrorIs(t, err, auth.ErrCacheUnavailable)
	errutil.AssertErrorCode(t, err, auth.CodeCacheUnavailable)

	_, err = c.Get(ctx, "jti-1")
	assert.ErrorIs(t, err, auth.ErrCacheUnavailable)
	assert.NotErrorIs(t, err, auth.ErrNotFound)

	assert.ErrorIs(t, c.Delete(ctx, "jti-1"), auth.ErrCacheUnavailable)
	assert.ErrorIs(t, c.Ping(ctx), auth.ErrCacheUnavailable)
}

func TestConnect(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backoff := retry.WithMaxRetries(1, retry.NewConstant(time.Millisecond))

	t.Run("connects", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb, err := cache.Connect(context.Background(), "redis://"+mr.Addr()+"/0", backoff, logger)
		require.NoError(t, err)
		t.Cleanup(func() { _ = rdb.Close() })
		assert.NoError(t, rdb.Ping(context.Background()).Err())
	})

	t.Run("bad URL", func(t *testing.T) {
		_, err := cache.Connect(context.Background(), "http://nope", backoff, logger)
		errutil.AssertErrorCode(t, err, "CACHE_CONFIG_INVALID")
	})

	t.Run("unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		_, err := cache.Connect(context.Background(), "redis://"+addr, backoff, logger)
		errutil.AssertErrorCode(t, err, "CACHE_CONNECT_FAILED")
	})
}
