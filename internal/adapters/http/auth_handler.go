package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthHandler issues development tokens for the checkout API. Production
// deployments authenticate through OIDC instead.
type AuthHandler struct {
	jwtSecret []byte
	logger    *slog.Logger
	now       func() time.Time
}

func NewAuthHandler(logger *slog.Logger, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		logger:    logger,
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
}

// LoginRequest - structure for login request.
type LoginRequest struct {
	Username string `json:"username"`
}

// LoginResponse - structure for response with token.
type LoginResponse struct {
	Token string `json:"token"`
}

// devAccounts maps the fixed development users to their roles.
var devAccounts = map[string][]string{
	"storefront": {"storefront"},
	"operator":   {"operator", "storefront"},
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest, h.logger)
		return
	}

	roles, ok := devAccounts[req.Username]
	if !ok {
		writeJSONError(w, "Invalid username", http.StatusUnauthorized, h.logger)
		return
	}

	now := h.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   req.Username,
		"roles": roles,
		"exp":   now.Add(time.Hour).Unix(),
		"iat":   now.Unix(),
	})

	signed, err := token.SignedString(h.jwtSecret)
	if err != nil {
		writeJSONError(w, "Failed to generate token", http.StatusInternalServerError, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: signed}, h.logger)
}
