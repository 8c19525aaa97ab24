// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package cache implements the revocation cache on Redis.
//
// Each live token identifier maps to a JSON CacheEntry under prefix+jti with
// a TTL equal to the token's remaining lifetime. Absence means revoked.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tollgate/tollgate/internal/auth"
)

// DefaultKeyPrefix is the key namespace for revocation entries.
const DefaultKeyPrefix = "token:"

// RevocationCache is a Redis-backed auth.RevocationCache.
type RevocationCache struct {
	rdb    redis.UniversalClient
	prefix string
}

// Compile-time interface check.
var _ auth.RevocationCache = (*RevocationCache)(nil)

// NewRevocationCache wraps rdb. An empty prefix selects DefaultKeyPrefix.
func NewRevocationCache(rdb redis.UniversalClient, prefix string) *RevocationCache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RevocationCache{rdb: rdb, prefix: prefix}
}

func (c *RevocationCache) key(tokenID string) string {
	return c.prefix + tokenID
}

// Put stores the entry. A non-positive ttl writes nothing: the token has
// already expired and a key without expiry would outlive it.
func (c *RevocationCache) Put(ctx context.Context, tokenID string, entry auth.CacheEntry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return auth.CacheError("encode entry", err)
	}
	if err := c.rdb.Set(ctx, c.key(tokenID), data, ttl).Err(); err != nil {
		return auth.CacheError("put", err)
	}
	return nil
}

// Get returns auth.ErrNotFound when no entry exists.
func (c *RevocationCache) Get(ctx context.Context, tokenID string) (*auth.CacheEntry, error) {
	data, err := c.rdb.Get(ctx, c.key(tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, auth.ErrNotFound
		}
		return nil, auth.CacheError("get", err)
	}

	var entry auth.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, auth.CacheError("decode entry", err)
	}
	return &entry, nil
}

// Delete removes the entry. Deleting a missing key succeeds.
func (c *RevocationCache) Delete(ctx context.Context, tokenID string) error {
	if err := c.rdb.Del(ctx, c.key(tokenID)).Err(); err != nil {
		return auth.CacheError("delete", err)
	}
	return nil
}

// Restore writes the entry only if the key is absent.
func (c *RevocationCache) Restore(ctx context.Context, tokenID string, entry auth.CacheEntry, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return false, auth.CacheError("encode entry", err)
	}
	ok, err := c.rdb.SetNX(ctx, c.key(tokenID), data, ttl).Result()
	if err != nil {
		return false, auth.CacheError("restore", err)
	}
	return ok, nil
}

// Ping checks connectivity.
func (c *RevocationCache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return auth.CacheError("ping", err)
	}
	return nil
}
