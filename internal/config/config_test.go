package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-engine/internal/core/domain"
)

const sampleConfig = `
app:
  env: development
server:
  port: ":8080"
gateway:
  id: klarna_checkout
  mode: live
  merchant_id: "12345"
  password: ${TEST_GATEWAY_PASSWORD}
  terms_path: /terms
  language: fi-fi
  update_billing_profile: true
  base_url: http://localhost
  timeout: 3s
`

func TestLoad_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_GATEWAY_PASSWORD", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "s3cret", cfg.Gateway.Password)
	assert.True(t, cfg.Gateway.IsLive())
	assert.True(t, cfg.Gateway.UpdateBillingProfile)
	assert.Equal(t, 3*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 12*time.Second, cfg.Gateway.LockTTL)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "payments.completed.dlq", cfg.Kafka.DLQTopic)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window())
	assert.NoError(t, cfg.Gateway.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestGatewayConfig_Accessors(t *testing.T) {
	tests := []struct {
		name      string
		cfg       GatewayConfig
		wantLive  bool
		wantAPI   string
		wantTerms string
	}{
		{
			name:      "live with external terms",
			cfg:       GatewayConfig{Mode: ModeLive, TermsPath: "http://google.com", BaseURL: "http://localhost"},
			wantLive:  true,
			wantAPI:   LiveAPIURL,
			wantTerms: "http://google.com",
		},
		{
			name:      "test with relative terms",
			cfg:       GatewayConfig{Mode: ModeTest, TermsPath: "/node/1", BaseURL: "http://localhost"},
			wantAPI:   TestAPIURL,
			wantTerms: "http://localhost/node/1",
		},
		{
			name:      "api override",
			cfg:       GatewayConfig{Mode: ModeLive, APIURL: "http://provider.local/orders", TermsPath: "/", BaseURL: "http://shop.example"},
			wantLive:  true,
			wantAPI:   "http://provider.local/orders",
			wantTerms: "http://shop.example/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantLive, tt.cfg.IsLive())
			assert.Equal(t, tt.wantAPI, tt.cfg.APIURI())
			assert.Equal(t, tt.wantTerms, tt.cfg.TermsURL())
		})
	}
}

func TestGatewayConfig_Validate(t *testing.T) {
	valid := GatewayConfig{Mode: ModeTest, MerchantID: "1", Password: "p", TermsPath: "/t", Language: "sv-se", BaseURL: "http://localhost"}
	require.NoError(t, valid.Validate())

	missing := valid
	missing.MerchantID = ""
	err := missing.Validate()
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Contains(t, err.Error(), "merchant_id")

	unmapped := valid
	unmapped.Language = "en-us"
	assert.True(t, errors.Is(unmapped.Validate(), domain.ErrConfiguration))

	shortLock := valid
	shortLock.Timeout = 10 * time.Second
	shortLock.LockTTL = 30 * time.Second
	err = shortLock.Validate()
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "lock_ttl")

	shortLock.LockTTL = 31 * time.Second
	assert.NoError(t, shortLock.Validate())
}

func TestGatewayConfig_DefaultLockTTLCoversProviderCalls(t *testing.T) {
	g := GatewayConfig{}
	g.applyDefaults()

	assert.Equal(t, 10*time.Second, g.Timeout)
	assert.Equal(t, 40*time.Second, g.LockTTL)
	assert.Greater(t, g.LockTTL, 3*g.Timeout)

	pinned := GatewayConfig{Timeout: 2 * time.Second, LockTTL: time.Minute}
	pinned.applyDefaults()
	assert.Equal(t, time.Minute, pinned.LockTTL)
}

func TestCountryForLocale(t *testing.T) {
	for locale, want := range map[string]string{
		"sv-se": "SE", "fi-fi": "FI", "sv-fi": "FI", "nb-no": "NO", "de-de": "DE", "de-at": "AT",
	} {
		got, ok := CountryForLocale(locale)
		assert.True(t, ok, locale)
		assert.Equal(t, want, got, locale)
	}
	_, ok := CountryForLocale("en-gb")
	assert.False(t, ok)
}
