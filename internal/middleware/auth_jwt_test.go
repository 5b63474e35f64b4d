package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"escrow/internal/domain"
)

func wallet() domain.Pubkey {
	var pk domain.Pubkey
	pk[0] = 9
	pk[31] = 1
	return pk
}

func authedRequest(t *testing.T, token string) *httptest.ResponseRecorder {
	t.Helper()
	var gotSigner domain.Pubkey
	var gotLocale string
	h := AuthJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSigner, _ = SignerFromContext(r.Context())
		gotLocale = LocaleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code == http.StatusNoContent {
		if gotSigner != wallet() {
			t.Fatalf("signer = %s, want %s", gotSigner, wallet())
		}
		if gotLocale != "id" {
			t.Fatalf("locale = %q, want id", gotLocale)
		}
	}
	return rr
}

func TestAuthJWTAcceptsSignedToken(t *testing.T) {
	token, err := SignToken("secret", wallet(), "id-ID", time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	if rr := authedRequest(t, token); rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
}

func TestAuthJWTRejects(t *testing.T) {
	wrongKey, _ := SignToken("other", wallet(), "", time.Hour)
	expired, _ := SignToken("secret", wallet(), "", -time.Minute)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: wallet().String(), Issuer: tokenIssuer},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "not-a-key", Issuer: tokenIssuer},
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := map[string]string{
		"missing":     "",
		"wrong key":   wrongKey,
		"expired":     expired,
		"alg none":    noneAlg,
		"bad subject": badSubject,
		"garbage":     "a.b.c",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			rr := authedRequest(t, token)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), `"code":"unauthorized"`) {
				t.Fatalf("unexpected body %s", rr.Body.String())
			}
		})
	}
}

func TestSignTokenRequiresSubject(t *testing.T) {
	if _, err := SignToken("secret", domain.Pubkey{}, "", time.Hour); err == nil {
		t.Fatalf("expected error for zero subject")
	}
	if _, err := SignToken("", wallet(), "", time.Hour); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestSignerFromContextEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := SignerFromContext(req.Context()); ok {
		t.Fatalf("empty context reported a signer")
	}
	ctx := ContextWithSigner(req.Context(), domain.Pubkey{})
	if _, ok := SignerFromContext(ctx); ok {
		t.Fatalf("zero key stored as signer")
	}
}
