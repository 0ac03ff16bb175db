// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

package middleware

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/brewops/brewops/internal/auth"
	"github.com/brewops/brewops/internal/logging"
)

const claimsKey contextKey = "claims"

// Authenticate validates the request's bearer credential and binds the
// resulting claims to the context. Requests without a valid credential
// are rejected before reaching any handler.
func Authenticate(jwt *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := jwt.ValidateToken(auth.ExtractToken(r))
			if err != nil {
				logging.Debug().Err(err).Str("path", r.URL.Path).Msg("authentication rejected")
				writeUnauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the authenticated identity bound by
// Authenticate. The second return is false on unauthenticated paths.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}

// writeUnauthorized emits the API error envelope without importing the
// api package, which sits above this one.
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error": map[string]string{
			"code":    "UNAUTHORIZED",
			"message": "invalid or missing credential",
		},
	})
}
