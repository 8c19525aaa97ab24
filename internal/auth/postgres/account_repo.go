// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/tollgate/tollgate/internal/auth"
)

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create stores a new account. The email column's unique constraint is the
// serialization point for concurrent signups.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	err := conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO users (name, email, password)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, account.Name, account.Email, account.PasswordHash).
		Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.With("email", account.Email).Wrap(auth.ErrDuplicateEmail)
		}
		return auth.StoreError("insert account", err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*auth.Account, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, name, email, password, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("id", id).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, auth.StoreError("get account by id", err)
	}
	return account, nil
}

// GetByEmail retrieves an account by normalized email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, name, email, password, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("email", email).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, auth.StoreError("get account by email", err)
	}
	return account, nil
}

// UpdatePasswordHash replaces the password hash of the account with the email.
func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, email, hash string) error {
	result, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE users SET password = $1, updated_at = NOW()
		WHERE email = $2
	`, hash, email)
	if err != nil {
		return auth.StoreError("update password hash", err)
	}
	if result.RowsAffected() == 0 {
		return oops.With("email", email).Wrap(auth.ErrNotFound)
	}
	return nil
}

func scanAccount(row pgx.Row) (*auth.Account, error) {
	var a auth.Account
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers classify pgx.ErrNoRows
	}
	return &a, nil
}

var _ auth.AccountRepository = (*AccountRepository)(nil)
