// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package auth implements the account, session and password reset lifecycle.
//
// # Domain Types
//
// Account, Session and PasswordReset mirror rows in the credential store.
// Session rows are mirrored into a RevocationCache keyed by the token
// identifier (jti) embedded in every bearer token.
//
// # Services
//
//   - TokenService - mints and parses HS256 bearer tokens
//   - SessionManager - signup, login, verify, logout
//   - PasswordResetService - request and consume single-use reset tokens
//   - Reconciler - rebuilds missing cache entries from live session rows
//
// Services are created with New* constructors that validate dependencies.
// Storage is reached only through the repository interfaces in this package;
// implementations live in auth/postgres and the cache package.
package auth
