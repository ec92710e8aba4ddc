// Package auth holds request identity shared by the authentication and
// authorization middlewares.
package auth

import "context"

type contextKey string

const claimsContextKey = contextKey("claims")

// WithClaims stores verified token claims (JWT or OIDC) in ctx.
func WithClaims(ctx context.Context, claims map[string]any) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFrom returns the claims stored by WithClaims.
func ClaimsFrom(ctx context.Context) (map[string]any, bool) {
	claims, ok := ctx.Value(claimsContextKey).(map[string]any)
	return claims, ok
}
