// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Error codes attached to oops errors returned by this package.
const (
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeAccountExists         = "ACCOUNT_EXISTS"
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeInvalidToken          = "INVALID_TOKEN"
	CodeTokenExpired          = "TOKEN_EXPIRED"
	CodeTokenRevoked          = "TOKEN_REVOKED"
	CodeAccountNotFound       = "ACCOUNT_NOT_FOUND"
	CodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_RESET_TOKEN"
	CodeStoreUnavailable      = "STORE_UNAVAILABLE"
	CodeCacheUnavailable      = "CACHE_UNAVAILABLE"
)

// Storage-level errors returned by repository implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when an account with the email already exists.
	ErrDuplicateEmail = errors.New("duplicate email")
)

// Error kinds surfaced to callers. Classify with errors.Is.
var (
	ErrValidationFailed      = errors.New("validation failed")
	ErrAccountExists         = errors.New("account already exists")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidToken          = errors.New("invalid token")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenRevoked          = errors.New("token revoked")
	ErrAccountNotFound       = errors.New("account not found")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token")
	ErrStoreUnavailable      = errors.New("credential store unavailable")
	ErrCacheUnavailable      = errors.New("revocation cache unavailable")
)

// StoreError marks err as a credential store failure for the named operation.
func StoreError(operation string, err error) error {
	return oops.Code(CodeStoreUnavailable).
		With("operation", operation).
		Wrap(fmt.Errorf("%w: %w", ErrStoreUnavailable, err))
}

// CacheError marks err as a revocation cache failure for the named operation.
func CacheError(operation string, err error) error {
	return oops.Code(CodeCacheUnavailable).
		With("operation", operation).
		Wrap(fmt.Errorf("%w: %w", ErrCacheUnavailable, err))
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries field-level detail for ErrValidationFailed.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Is reports ErrValidationFailed as the kind of every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// NewValidationError returns a coded validation error for the given fields.
func NewValidationError(fields ...FieldError) error {
	return oops.Code(CodeValidationFailed).Wrap(&ValidationError{Fields: fields})
}

// FieldErrors extracts field detail from a validation error, or nil.
func FieldErrors(err error) []FieldError {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}
