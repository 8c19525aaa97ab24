// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/samber/oops"
)

// LogNotifier stands in for email delivery by logging the reset link.
type LogNotifier struct {
	logger  *slog.Logger
	linkURL *url.URL
}

// NewLogNotifier creates a LogNotifier building links from linkBaseURL.
func NewLogNotifier(logger *slog.Logger, linkBaseURL string) (*LogNotifier, error) {
	u, err := url.Parse(linkBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, oops.Code("NOTIFIER_INVALID_URL").
			With("url", linkBaseURL).
			Errorf("reset link base URL must be absolute")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger, linkURL: u}, nil
}

// ResetLink returns the link carrying the token.
func (n *LogNotifier) ResetLink(token string) string {
	u := *n.linkURL
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// NotifyPasswordReset logs the reset link for the email.
func (n *LogNotifier) NotifyPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error {
	n.logger.InfoContext(ctx, "password reset link issued",
		"email", email,
		"link", n.ResetLink(token),
		"expires_at", expiresAt.UTC().Format(time.RFC3339),
	)
	return nil
}

var _ ResetNotifier = (*LogNotifier)(nil)
