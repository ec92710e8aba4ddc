package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-engine/internal/adapters/auth"
)

func TestLoginThenJWTMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	secret := "test-secret"

	login := httptest.NewRecorder()
	NewAuthHandler(logger, secret).HandleLogin(login,
		httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"username":"operator"}`)))
	require.Equal(t, http.StatusOK, login.Code)

	var resp LoginResponse
	require.NoError(t, json.NewDecoder(login.Body).Decode(&resp))

	var sub any
	protected := JWTMiddleware([]byte(secret), logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFrom(r.Context())
		require.True(t, ok)
		sub = claims["sub"]
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "operator", sub)
}

func TestJWTMiddleware_Rejects(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { t.Fatal("must not be called") })
	mw := JWTMiddleware([]byte("secret"), logger)(next)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "x", "exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	wrongKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte("other"))
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":   "",
		"malformed": "Token abc",
		"expired":   "Bearer " + expired,
		"wrong key": "Bearer " + wrongKey,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			mw.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	rec := httptest.NewRecorder()
	NewAuthHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), "s").HandleLogin(rec,
		httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"username":"mallory"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
