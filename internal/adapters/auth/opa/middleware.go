package opa

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"checkout-engine/internal/adapters/auth"
)

// Middleware for authorization via OPA.
type Middleware struct {
	opaURL string
	logger *slog.Logger
	client *http.Client
}

// NewMiddleware creates a new OPA middleware. The URL typically looks like
// http://opa:8181/v1/data/checkout/authz.
func NewMiddleware(opaURL string, logger *slog.Logger) *Middleware {
	return &Middleware{
		opaURL: opaURL,
		logger: logger,
		client: &http.Client{Timeout: 500 * time.Millisecond},
	}
}

// Input is the document OPA evaluates.
type Input struct {
	Method  string         `json:"method"`
	Path    string         `json:"path"`
	OrderID string         `json:"order_id,omitempty"`
	User    map[string]any `json:"user"`
}

type decision struct {
	Result struct {
		Allow bool `json:"allow"`
	} `json:"result"`
}

// Authorize is an HTTP middleware that performs permissions checking.
// orderID extracts the order the request targets, if any.
func (m *Middleware) Authorize(orderID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFrom(r.Context())
			if !ok {
				http.Error(w, "Claims not found in context", http.StatusUnauthorized)
				return
			}

			input := Input{Method: r.Method, Path: r.URL.Path, User: claims}
			if orderID != nil {
				input.OrderID = orderID(r)
			}

			body, err := json.Marshal(map[string]any{"input": input})
			if err != nil {
				m.logger.Error("Failed to create OPA request", "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, m.opaURL, bytes.NewReader(body))
			if err != nil {
				m.logger.Error("Failed to create OPA request", "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := m.client.Do(req)
			if err != nil {
				m.logger.Error("error accessing OPA", "error", err)
				http.Error(w, "Authorization service unavailable", http.StatusServiceUnavailable)
				return
			}
			defer resp.Body.Close()

			var d decision
			if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
				m.logger.Error("Unable to decode response from OPA", "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			if !d.Result.Allow {
				m.logger.Info("request denied by policy", "method", r.Method, "path", r.URL.Path, "order_id", input.OrderID)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
