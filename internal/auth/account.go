// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

// Input constraints shared by the service layer and request validation.
const (
	MinNameLength     = 2
	MinPasswordLength = 6
)

// Account is a registered identity.
type Account struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the public view of an account. It never carries the hash.
type Profile struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile returns the public fields of the account.
func (a *Account) Profile() Profile {
	return Profile{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		CreatedAt: a.CreatedAt,
	}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateSignup checks signup input after normalization.
func ValidateSignup(name, email, password string) error {
	var fields []FieldError
	if utf8.RuneCountInString(strings.TrimSpace(name)) < MinNameLength {
		fields = append(fields, FieldError{Field: "name", Message: "Name must be at least 2 characters"})
	}
	if !validEmail(email) {
		fields = append(fields, FieldError{Field: "email", Message: "Valid email required"})
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		fields = append(fields, FieldError{Field: "password", Message: "Password must be at least 6 characters"})
	}
	if len(fields) > 0 {
		return NewValidationError(fields...)
	}
	return nil
}

// ValidateNewPassword checks a replacement password.
func ValidateNewPassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return NewValidationError(FieldError{Field: "password", Message: "Password must be at least 6 characters"})
	}
	return nil
}

func validEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// ParseAddress accepts "Name <addr>"; only a bare address is valid here.
	return addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@")+1:], ".")
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create inserts a new account and fills in ID and timestamps.
	// Returns ErrDuplicateEmail if the email is already registered.
	Create(ctx context.Context, account *Account) error

	// GetByID returns ErrNotFound if the account does not exist.
	GetByID(ctx context.Context, id int64) (*Account, error)

	// GetByEmail looks up by normalized email. Returns ErrNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// UpdatePasswordHash replaces the hash for the account with the email.
	// Returns ErrNotFound if no account matched.
	UpdatePasswordHash(ctx context.Context, email, hash string) error
}
