// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package errutil

import (
	"maps"
	"slices"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
)

// TestingT is the part of *testing.T the assertions use.
type TestingT interface {
	assert.TestingT
	Helper()
}

// AssertErrorCode asserts that err carries the oops code, such as
// "INVALID_CREDENTIALS" or "TOKEN_REVOKED". On mismatch the message shows
// the code err actually carries.
func AssertErrorCode(t TestingT, err error, code string) {
	t.Helper()
	if !assert.Error(t, err, "expected an error coded %s, got nil", code) {
		return
	}
	if _, ok := oops.AsOops(err); !ok {
		assert.Fail(t, "error carries no code", "expected code %s on uncoded %T: %v", code, err, err)
		return
	}
	assert.Equal(t, code, Code(err), "wrong error code on: %v", err)
}

// AssertErrorContext asserts that err carries key with value in its oops
// context, such as "account_id" or "operation". On a missing key the
// message lists the keys err does carry.
func AssertErrorContext(t TestingT, err error, key string, value any) {
	t.Helper()
	if !assert.Error(t, err, "expected an error with context %s, got nil", key) {
		return
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		assert.Fail(t, "error carries no context", "expected context %s on uncoded %T: %v", key, err, err)
		return
	}
	ctx := oopsErr.Context()
	got, present := ctx[key]
	if !present {
		assert.Fail(t, "missing error context key",
			"key %q not in %v on: %v", key, slices.Sorted(maps.Keys(ctx)), err)
		return
	}
	assert.Equal(t, value, got, "wrong value for error context %q on: %v", key, err)
}
