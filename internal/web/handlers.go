// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package web

import (
	"net/http"

	"github.com/tollgate/tollgate/internal/auth"
)

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := s.validator.decode(w, r, &req); err != nil {
		writeError(r.Context(), s.logger, w, "signup", err)
		return
	}
	profile, err := s.sessions.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(r.Context(), s.logger, w, "signup", err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{Message: MsgSignupOK, User: *profile})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.validator.decode(w, r, &req); err != nil {
		writeError(r.Context(), s.logger, w, "login", err)
		return
	}
	res, err := s.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(r.Context(), s.logger, w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Message: MsgLoginOK, Token: res.Token, User: res.Account})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: MsgTokenRequired})
		return
	}
	profile, err := s.sessions.Verify(r.Context(), token)
	if err != nil {
		writeError(r.Context(), s.logger, w, "verify", err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Message: MsgTokenValid, User: *profile})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: MsgTokenRequired})
		return
	}
	if err := s.sessions.Logout(r.Context(), token); err != nil {
		writeError(r.Context(), s.logger, w, "logout", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: MsgLogoutOK})
}

// handleForgotPassword answers with the same message whether or not the
// email is registered.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := s.validator.decode(w, r, &req); err != nil {
		writeError(r.Context(), s.logger, w, "forgot_password", err)
		return
	}
	if err := s.resets.RequestReset(r.Context(), req.Email); err != nil {
		writeError(r.Context(), s.logger, w, "forgot_password", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: MsgResetRequested})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := s.validator.decode(w, r, &req); err != nil {
		writeError(r.Context(), s.logger, w, "reset_password", err)
		return
	}
	if err := s.resets.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeError(r.Context(), s.logger, w, "reset_password", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: MsgResetOK})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var (
	_ SessionService = (*auth.SessionManager)(nil)
	_ ResetService   = (*auth.PasswordResetService)(nil)
)
