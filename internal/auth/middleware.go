// SPDX-License-Identifier: MIT

package auth

import (
	"encoding/json"
	"net/http"

	"github.com/parleyhq/parley/internal/log"
)

// Require returns a middleware that rejects requests without a valid access
// token. allowQuery additionally accepts ?token=, which WebSocket dials from
// browsers need.
func Require(tokens *Tokens, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := ExtractToken(r, allowQuery)
			logger := log.WithComponentFromContext(r.Context(), "auth")

			if raw == "" {
				logger.Warn().Str("event", "auth.missing_token").Str("path", r.URL.Path).Msg("no bearer token")
				unauthorized(w)
				return
			}

			claims, err := tokens.Verify(raw, TokenAccess)
			if err != nil {
				logger.Warn().Str("event", "auth.invalid_token").Err(err).Msg("token rejected")
				unauthorized(w)
				return
			}

			ctx := WithPrincipal(r.Context(), Principal{
				UserID:   claims.UserID,
				Username: claims.Username,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
