package handlers

import (
	"net/http"
	"time"

	"escrow/internal/domain"
	"escrow/internal/middleware"
)

const devTokenTTL = 24 * time.Hour

type devTokenRequest struct {
	Wallet domain.Pubkey `json:"wallet"`
	Locale string        `json:"locale"`
}

type devTokenResponse struct {
	Token     string    `json:"token"`
	Wallet    string    `json:"wallet"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthDevToken issues a bearer token for any wallet. The router mounts it
// only in development; elsewhere tokens come from escrowctl.
func (a *App) AuthDevToken(w http.ResponseWriter, r *http.Request) {
	var req devTokenRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Wallet.IsZero() {
		a.badRequest(w, r, "wallet is required")
		return
	}
	locale := req.Locale
	if locale == "" {
		locale = middleware.LocaleFromContext(r.Context())
	}
	token, err := middleware.SignToken(a.Config.JWTSecret, req.Wallet, locale, devTokenTTL)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, devTokenResponse{
		Token:     token,
		Wallet:    req.Wallet.String(),
		ExpiresAt: time.Now().Add(devTokenTTL).UTC().Truncate(time.Second),
	})
}
