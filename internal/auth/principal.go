// SPDX-License-Identifier: MIT

package auth

import "context"

// Principal is the authenticated identity of a caller.
type Principal struct {
	UserID   int64
	Username string
}

type ctxPrincipalKey struct{}

// WithPrincipal stores the principal in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey{}, p)
}

// FromContext returns the principal stored by the auth middleware.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxPrincipalKey{}).(Principal)
	return p, ok
}
