// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tollgate/tollgate/internal/auth"
	"github.com/tollgate/tollgate/pkg/errutil"
)

// Response messages.
const (
	MsgSignupOK          = "User created successfully"
	MsgLoginOK           = "Login successful"
	MsgTokenValid        = "Token is valid"
	MsgLogoutOK          = "Logout successful"
	MsgResetRequested    = "If an account with that email exists, password reset instructions have been sent."
	MsgResetOK           = "Password reset successfully"
	MsgValidationFailed  = "Validation failed"
	MsgAccountExists     = "User already exists with this email"
	MsgInvalidCreds      = "Invalid credentials"
	MsgTokenRequired     = "Access token required"
	MsgTokenRevoked      = "Token has been revoked"
	MsgTokenExpired      = "Token expired"
	MsgInvalidToken      = "Invalid token"
	MsgAccountNotFound   = "User not found"
	MsgInvalidResetToken = "Invalid or expired reset token"
	MsgInternal          = "Internal server error"
)

type messageResponse struct {
	Message string `json:"message"`
}

type userResponse struct {
	Message string       `json:"message"`
	User    auth.Profile `json:"user"`
}

type loginResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    auth.Profile `json:"user"`
}

type errorResponse struct {
	Message string            `json:"message"`
	Errors  []auth.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect mid-response
	json.NewEncoder(w).Encode(body)
}

// errorStatus maps an auth error to its HTTP status and public message.
// Infrastructure and unclassified errors share a generic 500.
func errorStatus(err error) (int, string) {
	switch auth.Kind(err) {
	case auth.CodeValidationFailed:
		return http.StatusBadRequest, MsgValidationFailed
	case auth.CodeAccountExists:
		return http.StatusBadRequest, MsgAccountExists
	case auth.CodeInvalidOrExpiredToken:
		return http.StatusBadRequest, MsgInvalidResetToken
	case auth.CodeInvalidCredentials:
		return http.StatusUnauthorized, MsgInvalidCreds
	case auth.CodeTokenRevoked:
		return http.StatusUnauthorized, MsgTokenRevoked
	case auth.CodeTokenExpired:
		return http.StatusUnauthorized, MsgTokenExpired
	case auth.CodeInvalidToken:
		return http.StatusUnauthorized, MsgInvalidToken
	case auth.CodeAccountNotFound:
		return http.StatusUnauthorized, MsgAccountNotFound
	default:
		return http.StatusInternalServerError, MsgInternal
	}
}

// writeError renders err. Server errors are logged with their oops
// context; client errors are logged at info with the error kind only.
func writeError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, operation string, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(ctx, logger, operation+" failed", err)
	} else {
		logger.InfoContext(ctx, operation+" rejected", "kind", auth.Kind(err))
	}
	writeJSON(w, status, errorResponse{Message: msg, Errors: auth.FieldErrors(err)})
}
