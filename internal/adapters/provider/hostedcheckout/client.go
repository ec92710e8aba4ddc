// Package hostedcheckout is the HTTP adapter for the hosted checkout provider.
package hostedcheckout

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"checkout-engine/internal/config"
	"checkout-engine/internal/core/domain"
)

// ContentType is the provider's versioned media type.
const ContentType = "application/vnd.klarna.checkout.aggregated-order-v2+json"

const maxResponseBytes = 1 << 20

// Client implements the RemoteTransactionGateway port over HTTP.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a client for the configured mode. The transport is traced
// with otelhttp.
func NewClient(cfg config.GatewayConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.APIURI(), "/"),
		secret:  cfg.Password,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// remoteOrder is the subset of the provider resource the engine reads.
type remoteOrder struct {
	ID             string                 `json:"id"`
	Status         domain.RemoteStatus    `json:"status"`
	BillingAddress *domain.BillingAddress `json:"billing_address"`
	GUI            struct {
		Snippet string `json:"snippet"`
	} `json:"gui"`
}

// Create posts a new checkout. The provider answers 201 with the resource
// location; the id is its last path segment.
func (c *Client) Create(ctx context.Context, values domain.Values) (*domain.RemoteTransaction, error) {
	resp, body, err := c.do(ctx, http.MethodPost, c.baseURL, values)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, statusError("create", resp, body)
	}

	id := idFromLocation(resp.Header.Get("Location"))
	if id == "" && len(body) > 0 {
		tx, err := decode(body, values)
		if err == nil {
			return tx, nil
		}
	}
	return &domain.RemoteTransaction{ID: id, Values: values}, nil
}

func (c *Client) Fetch(ctx context.Context, id string) (*domain.RemoteTransaction, error) {
	resp, body, err := c.do(ctx, http.MethodGet, c.resourceURL(id), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("fetch %s: %w", id, domain.ErrRemoteNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("fetch", resp, body)
	}
	return decodeWithID(id, body, nil)
}

// Update posts values to an existing checkout and returns the provider's view
// of it. An empty body leaves Status empty; callers re-fetch in that case.
func (c *Client) Update(ctx context.Context, id string, values domain.Values) (*domain.RemoteTransaction, error) {
	resp, body, err := c.do(ctx, http.MethodPost, c.resourceURL(id), values)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("update %s: %w", id, domain.ErrRemoteNotFound)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return nil, statusError("update", resp, body)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return &domain.RemoteTransaction{ID: id, Values: values}, nil
	}
	return decodeWithID(id, body, values)
}

func (c *Client) resourceURL(id string) string {
	return c.baseURL + "/" + id
}

func (c *Client) do(ctx context.Context, method, url string, values domain.Values) (*http.Response, []byte, error) {
	var payload []byte
	if values != nil {
		var err error
		if payload, err = json.Marshal(values); err != nil {
			return nil, nil, fmt.Errorf("%w: encode request: %v", domain.ErrRemote, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: build request: %v", domain.ErrRemote, err)
	}
	req.Header.Set("Accept", ContentType)
	req.Header.Set("Authorization", "Klarna "+Digest(payload, c.secret))
	if values != nil {
		req.Header.Set("Content-Type", ContentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s %s: %v", domain.ErrRemote, method, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read response: %v", domain.ErrRemote, err)
	}

	c.logger.Debug("provider call",
		"method", method, "url", url, "status", resp.StatusCode, "duration", time.Since(start))
	return resp, body, nil
}

// Digest is the shared-secret request signature: base64(sha256(body + secret)).
func Digest(body []byte, secret string) string {
	sum := sha256.Sum256(append(append([]byte{}, body...), secret...))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func decode(body []byte, values domain.Values) (*domain.RemoteTransaction, error) {
	var o remoteOrder
	if err := json.Unmarshal(body, &o); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrRemote, err)
	}
	return &domain.RemoteTransaction{
		ID:             o.ID,
		Status:         o.Status,
		BillingAddress: o.BillingAddress,
		Snippet:        o.GUI.Snippet,
		Values:         values,
	}, nil
}

func decodeWithID(id string, body []byte, values domain.Values) (*domain.RemoteTransaction, error) {
	tx, err := decode(body, values)
	if err != nil {
		return nil, err
	}
	if tx.ID == "" {
		tx.ID = id
	}
	return tx, nil
}

func idFromLocation(location string) string {
	location = strings.TrimRight(location, "/")
	if i := strings.LastIndex(location, "/"); i >= 0 {
		return location[i+1:]
	}
	return location
}

func statusError(op string, resp *http.Response, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return fmt.Errorf("%w: %s: provider responded %d: %s", domain.ErrRemote, op, resp.StatusCode, msg)
}
