package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"escrow/internal/domain"
)

const tokenIssuer = "escrow"

// Claims carries the signing wallet in the registered subject claim.
type Claims struct {
	Locale string `json:"locale,omitempty"`
	jwt.RegisteredClaims
}

type signerKey struct{}

// SignToken issues an HS256 token whose subject is the base58 wallet key. A
// zero ttl issues a token without expiry.
func SignToken(secret string, subject domain.Pubkey, locale string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	if subject.IsZero() {
		return "", errors.New("jwt subject is empty")
	}
	now := time.Now()
	claims := Claims{
		Locale: locale,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject.String(),
			Issuer:   tokenIssuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyToken checks the signature and expiry and returns the claims.
func VerifyToken(secret, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// AuthJWT requires a bearer token and stores the subject wallet as the signer
// of the request.
func AuthJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "missing authorization")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthorized(w, "invalid authorization")
				return
			}
			claims, err := VerifyToken(secret, strings.TrimSpace(parts[1]))
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}
			signer, err := domain.ParsePubkey(claims.Subject)
			if err != nil || signer.IsZero() {
				unauthorized(w, "invalid token subject")
				return
			}
			ctx := ContextWithSigner(r.Context(), signer)
			if claims.Locale != "" {
				ctx = context.WithValue(ctx, LocaleKey, normalizeLocale(claims.Locale))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SignerFromContext returns the authenticated wallet, if any.
func SignerFromContext(ctx context.Context) (domain.Pubkey, bool) {
	pk, ok := ctx.Value(signerKey{}).(domain.Pubkey)
	return pk, ok && !pk.IsZero()
}

func ContextWithSigner(ctx context.Context, signer domain.Pubkey) context.Context {
	if signer.IsZero() {
		return ctx
	}
	return context.WithValue(ctx, signerKey{}, signer)
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Bearer realm=%q", tokenIssuer))
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": "unauthorized", "message": msg},
	})
}
