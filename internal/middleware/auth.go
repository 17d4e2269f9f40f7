package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminClaims identifies the bearer of an admin token — the commissioner
// or tool that is allowed to create and tear down auctions. There is no
// per-user identity here the way ClerkClaims carried one: admin access is
// a single shared capability, not a user session.
type AdminClaims struct {
	jwt.RegisteredClaims
	Subject string `json:"sub"`
}

// AdminAuth validates JWTs signed with a static HMAC (HS256/384/512) secret against the
// admin-only management endpoints, in place of a
// JWKS-backed session auth: there is no end-user login flow in front of
// this engine, only an admin capability and the per-auction tokens
// minted by the Manager.
type AdminAuth struct {
	logger *slog.Logger
	secret []byte
}

func NewAdminAuth(logger *slog.Logger, secret string) *AdminAuth {
	return &AdminAuth{logger: logger, secret: []byte(secret)}
}

// Middleware rejects any request lacking a valid bearer token signed with
// the admin secret. A development bypass lets the admin surface be
// exercised locally without minting a token.
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env := os.Getenv("ENVIRONMENT")
		if (env == "development" || env == "test" || env == "") && r.Header.Get("X-Dev-Admin") == "1" {
			a.logger.Debug("dev bypass admin auth", slog.String("path", r.URL.Path))
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			a.unauthorized(w, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			a.unauthorized(w, "invalid authorization header format")
			return
		}

		if _, err := a.validateToken(parts[1]); err != nil {
			a.logger.Warn("admin token validation failed",
				slog.String("error", err.Error()),
				slog.String("request_id", GetRequestID(r.Context())),
			)
			a.unauthorized(w, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *AdminAuth) validateToken(tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("token expired")
	}
	return claims, nil
}

func (a *AdminAuth) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
