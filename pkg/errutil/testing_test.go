// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package errutil_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/tollgate/tollgate/pkg/errutil"
)

// recordingT captures failures instead of failing the enclosing test.
type recordingT struct {
	messages []string
}

func (r *recordingT) Errorf(format string, args ...any) {
	r.messages = append(r.messages, fmt.Sprintf(format, args...))
}

func (r *recordingT) Helper() {}

func (r *recordingT) output() string { return strings.Join(r.messages, "\n") }

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("INVALID_CREDENTIALS").Errorf("test error")
	errutil.AssertErrorCode(t, err, "INVALID_CREDENTIALS")
}

func TestAssertErrorCode_Failures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil error", nil, "expected an error coded TOKEN_REVOKED, got nil"},
		{"uncoded error", errors.New("boom"), "error carries no code"},
		{"other code", oops.Code("TOKEN_EXPIRED").Errorf("expired"), "wrong error code on: expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingT{}
			errutil.AssertErrorCode(rec, tt.err, "TOKEN_REVOKED")
			assert.Len(t, rec.messages, 1)
			assert.Contains(t, rec.output(), tt.want)
		})
	}
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("account_id", int64(7)).Errorf("test error")
	errutil.AssertErrorContext(t, err, "account_id", int64(7))
}

func TestAssertErrorContext_Failures(t *testing.T) {
	coded := oops.With("operation", "login").With("email", "ana@x.io").Errorf("failed")

	t.Run("missing key lists present keys", func(t *testing.T) {
		rec := &recordingT{}
		errutil.AssertErrorContext(rec, coded, "account_id", int64(7))
		assert.Len(t, rec.messages, 1)
		assert.Contains(t, rec.output(), `key "account_id" not in [email operation]`)
	})

	t.Run("wrong value", func(t *testing.T) {
		rec := &recordingT{}
		errutil.AssertErrorContext(rec, coded, "operation", "logout")
		assert.Len(t, rec.messages, 1)
		assert.Contains(t, rec.output(), `wrong value for error context "operation"`)
	})

	t.Run("uncoded error", func(t *testing.T) {
		rec := &recordingT{}
		errutil.AssertErrorContext(rec, errors.New("boom"), "operation", "login")
		assert.Contains(t, rec.output(), "error carries no context")
	})
}
