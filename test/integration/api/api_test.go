// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

//go:build integration

package api_test

import (
	"net/http"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/tollgate/tollgate/internal/web"
)

func freshEmail() string {
	return strings.ToLower(gofakeit.Username()) + "@" + strings.ToLower(gofakeit.DomainName())
}

var _ = Describe("Session lifecycle", func() {
	It("signs up, logs in, verifies and revokes on logout", func() {
		email := freshEmail()

		created := signup("Ann", email, "secret1")
		Expect(created.status).To(Equal(http.StatusCreated))
		Expect(created.Message).To(Equal(web.MsgSignupOK))
		Expect(created.User.Email).To(Equal(email))

		session := login(email, "secret1")
		Expect(session.status).To(Equal(http.StatusOK))
		Expect(session.Token).NotTo(BeEmpty())

		verified := call(http.MethodGet, "/verify", nil, session.Token)
		Expect(verified.status).To(Equal(http.StatusOK))
		Expect(verified.User.ID).To(Equal(created.User.ID))
		Expect(verified.User.Email).To(Equal(email))

		out := call(http.MethodPost, "/logout", nil, session.Token)
		Expect(out.status).To(Equal(http.StatusOK))
		Expect(out.Message).To(Equal(web.MsgLogoutOK))

		again := call(http.MethodGet, "/verify", nil, session.Token)
		Expect(again.status).To(Equal(http.StatusUnauthorized))
		Expect(again.Message).To(Equal(web.MsgTokenRevoked))
	})

	It("rejects a second signup with the same email in any case", func() {
		email := freshEmail()
		first := signup("Ann", email, "secret1")
		Expect(first.status).To(Equal(http.StatusCreated))

		dup := signup("Other", strings.ToUpper(email), "another1")
		Expect(dup.status).To(Equal(http.StatusBadRequest))
		Expect(dup.Message).To(Equal(web.MsgAccountExists))

		// The original password still works.
		Expect(login(email, "secret1").status).To(Equal(http.StatusOK))
	})

	It("answers bad passwords and unknown emails identically", func() {
		email := freshEmail()
		Expect(signup("Ann", email, "secret1").status).To(Equal(http.StatusCreated))

		wrong := login(email, "wrong-password")
		missing := login(freshEmail(), "secret1")

		Expect(wrong.status).To(Equal(http.StatusUnauthorized))
		Expect(missing.status).To(Equal(wrong.status))
		Expect(missing.Message).To(Equal(wrong.Message))
		Expect(wrong.Message).To(Equal(web.MsgInvalidCreds))
	})

	It("rejects a tampered token", func() {
		email := freshEmail()
		Expect(signup("Ann", email, "secret1").status).To(Equal(http.StatusCreated))
		token := login(email, "secret1").Token

		parts := strings.Split(token, ".")
		Expect(parts).To(HaveLen(3))
		payload := []byte(parts[1])
		if payload[0] == 'e' {
			payload[0] = 'f'
		} else {
			payload[0] = 'e'
		}
		tampered := parts[0] + "." + string(payload) + "." + parts[2]

		res := call(http.MethodGet, "/verify", nil, tampered)
		Expect(res.status).To(Equal(http.StatusUnauthorized))
		Expect(res.Message).To(Equal(web.MsgInvalidToken))
	})

	It("restores lost cache entries on reconciliation", func() {
		email := freshEmail()
		Expect(signup("Ann", email, "secret1").status).To(Equal(http.StatusCreated))
		token := login(email, "secret1").Token

		env.redis.FlushAll()
		Expect(call(http.MethodGet, "/verify", nil, token).status).To(Equal(http.StatusUnauthorized))

		res, err := env.reconciler.Reconcile(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Restored).To(BeNumerically(">=", 1))

		Expect(call(http.MethodGet, "/verify", nil, token).status).To(Equal(http.StatusOK))
	})
})

var _ = Describe("Password reset", func() {
	It("answers forgot-password generically and rejects unknown reset tokens", func() {
		res := call(http.MethodPost, "/forgot-password", map[string]string{"email": "missing@x.com"}, "")
		Expect(res.status).To(Equal(http.StatusOK))
		Expect(res.Message).To(Equal(web.MsgResetRequested))

		reset := call(http.MethodPost, "/reset-password", map[string]string{"token": "any-token", "password": "newpass1"}, "")
		Expect(reset.status).To(Equal(http.StatusBadRequest))
		Expect(reset.Message).To(Equal(web.MsgInvalidResetToken))
	})

	It("resets the password once per token", func() {
		email := freshEmail()
		Expect(signup("Ann", email, "secret1").status).To(Equal(http.StatusCreated))

		res := call(http.MethodPost, "/forgot-password", map[string]string{"email": email}, "")
		Expect(res.status).To(Equal(http.StatusOK))
		token := env.outbox.token(email)
		Expect(token).NotTo(BeEmpty())

		first := call(http.MethodPost, "/reset-password", map[string]string{"token": token, "password": "newpass1"}, "")
		Expect(first.status).To(Equal(http.StatusOK))
		Expect(first.Message).To(Equal(web.MsgResetOK))

		second := call(http.MethodPost, "/reset-password", map[string]string{"token": token, "password": "newpass2"}, "")
		Expect(second.status).To(Equal(http.StatusBadRequest))
		Expect(second.Message).To(Equal(web.MsgInvalidResetToken))

		Expect(login(email, "secret1").status).To(Equal(http.StatusUnauthorized))
		Expect(login(email, "newpass1").status).To(Equal(http.StatusOK))
	})

	It("rejects an expired reset token that was never used", func() {
		email := freshEmail()
		Expect(signup("Ann", email, "secret1").status).To(Equal(http.StatusCreated))

		Expect(env.staleResets.RequestReset(env.ctx, email)).To(Succeed())
		token := env.outbox.token(email)
		Expect(token).NotTo(BeEmpty())

		res := call(http.MethodPost, "/reset-password", map[string]string{"token": token, "password": "newpass1"}, "")
		Expect(res.status).To(Equal(http.StatusBadRequest))
		Expect(res.Message).To(Equal(web.MsgInvalidResetToken))
		Expect(login(email, "secret1").status).To(Equal(http.StatusOK))
	})
})
