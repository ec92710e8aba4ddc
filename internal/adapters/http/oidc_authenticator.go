package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"

	"checkout-engine/internal/adapters/auth"
)

// OIDCAuthenticator stores the token verifier.
type OIDCAuthenticator struct {
	verifier *oidc.IDTokenVerifier
	logger   *slog.Logger
}

// NewOIDCAuthenticator connects to the OIDC provider (Keycloak) and creates an authenticator.
func NewOIDCAuthenticator(ctx context.Context, providerURL, clientID string, logger *slog.Logger) (*OIDCAuthenticator, error) {
	if providerURL == "" || clientID == "" {
		return nil, fmt.Errorf("OIDC URL and client id cannot be empty")
	}

	provider, err := oidc.NewProvider(ctx, providerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	return &OIDCAuthenticator{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		logger:   logger,
	}, nil
}

// Middleware verifies the bearer ID token and stores its claims for OPA.
func (a *OIDCAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawToken, ok := bearerToken(r)
		if !ok {
			writeJSONError(w, "Authorization header required", http.StatusUnauthorized, a.logger)
			return
		}

		idToken, err := a.verifier.Verify(r.Context(), rawToken)
		if err != nil {
			a.logger.Warn("OIDC token rejected", "error", err)
			writeJSONError(w, "Invalid token", http.StatusUnauthorized, a.logger)
			return
		}

		var claims map[string]any
		if err := idToken.Claims(&claims); err != nil {
			writeJSONError(w, "Failed to extract claims", http.StatusInternalServerError, a.logger)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}
