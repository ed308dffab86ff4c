// SPDX-License-Identifier: MIT

package auth

import (
	"net/http"
	"strings"
)

// ExtractToken retrieves the bearer token from the request.
// 1. Authorization: Bearer <token>
// 2. Query: ?token= (if allowed; browsers cannot set headers on WebSocket dials)
func ExtractToken(r *http.Request, allowQuery bool) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if allowQuery {
		if t := r.URL.Query().Get("token"); t != "" {
			return t
		}
	}
	return ""
}
