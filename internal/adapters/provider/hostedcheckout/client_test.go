package hostedcheckout

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-engine/internal/config"
	"checkout-engine/internal/core/domain"
)

const secret = "sharedSecret"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.GatewayConfig{Mode: config.ModeTest, Password: secret, APIURL: srv.URL + "/checkout/orders"}
	return NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_Create(t *testing.T) {
	values := domain.Values{"locale": "sv-se", "merchant_reference": map[string]any{"orderid1": "1"}}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/orders", r.URL.Path)
		assert.Equal(t, ContentType, r.Header.Get("Content-Type"))
		assert.Equal(t, "Klarna "+Digest(body, secret), r.Header.Get("Authorization"))

		var got map[string]any
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "sv-se", got["locale"])

		w.Header().Set("Location", "http://"+r.Host+"/checkout/orders/ABC123")
		w.WriteHeader(http.StatusCreated)
	})

	tx, err := c.Create(context.Background(), values)

	require.NoError(t, err)
	assert.Equal(t, "ABC123", tx.ID)
}

func TestClient_Fetch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/checkout/orders/ABC123", r.URL.Path)
		assert.Equal(t, "Klarna "+Digest(nil, secret), r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", ContentType)
		_, _ = io.WriteString(w, `{
			"id": "ABC123",
			"status": "checkout_complete",
			"billing_address": {"given_name": "Testperson-se", "street_address": "Stårgatan 1", "city": "Ankeborg", "country": "se"},
			"gui": {"snippet": "<div id=\"klarna-checkout-container\"></div>"}
		}`)
	})

	tx, err := c.Fetch(context.Background(), "ABC123")

	require.NoError(t, err)
	assert.Equal(t, domain.StatusCheckoutComplete, tx.Status)
	assert.Equal(t, `<div id="klarna-checkout-container"></div>`, tx.Snippet)
	require.NotNil(t, tx.BillingAddress)
	assert.Equal(t, "Stårgatan 1", tx.BillingAddress.StreetAddress)
}

func TestClient_Errors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		_, err := c.Fetch(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrRemoteNotFound)
	})

	t.Run("rejected", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"http_status_message":"Forbidden"}`, http.StatusForbidden)
		})
		_, err := c.Create(context.Background(), domain.Values{})
		assert.ErrorIs(t, err, domain.ErrRemote)
		assert.Contains(t, err.Error(), "403")
	})

	t.Run("transport", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		c := NewClient(config.GatewayConfig{APIURL: srv.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
		_, err := c.Fetch(context.Background(), "x")
		assert.ErrorIs(t, err, domain.ErrRemote)
	})
}

func TestClient_Update(t *testing.T) {
	t.Run("decodes status", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"status":"created"}`, string(body))
			_, _ = io.WriteString(w, `{"status":"created"}`)
		})
		tx, err := c.Update(context.Background(), "ABC123", domain.Values{"status": "created"})
		require.NoError(t, err)
		assert.Equal(t, "ABC123", tx.ID)
		assert.Equal(t, domain.StatusCreated, tx.Status)
	})

	t.Run("empty body leaves status unknown", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		tx, err := c.Update(context.Background(), "ABC123", domain.Values{"status": "created"})
		require.NoError(t, err)
		assert.Empty(t, tx.Status)
	})
}

func TestDigest(t *testing.T) {
	// base64(sha256("{}" + "secret"))
	assert.Equal(t, "aCbhaeJwppnTZAej4/nJu6R3i7myfJnpmgv0d2IJPUY=", Digest([]byte("{}"), "secret"))
}
