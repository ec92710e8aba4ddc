package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"checkout-engine/internal/core/domain"
)

// Provider API endpoints by mode.
const (
	LiveAPIURL = "https://checkout.klarna.com/checkout/orders"
	TestAPIURL = "https://checkout.testdrive.klarna.com/checkout/orders"
)

const (
	ModeLive = "live"
	ModeTest = "test"
)

// providerCallsPerTransition is the most provider calls one reconciliation
// makes while holding the order lock (fetch, update, re-fetch).
const providerCallsPerTransition = 3

// lockTTLFactor sizes the default lock TTL with one call of headroom.
const lockTTLFactor = providerCallsPerTransition + 1

// localeCountries maps the supported checkout locales to purchase countries.
var localeCountries = map[string]string{
	"sv-se": "SE",
	"fi-fi": "FI",
	"sv-fi": "FI",
	"nb-no": "NO",
	"de-de": "DE",
	"de-at": "AT",
}

// CountryForLocale resolves the purchase country of a checkout locale.
func CountryForLocale(locale string) (string, bool) {
	country, ok := localeCountries[locale]
	return country, ok
}

// GatewayConfig holds hosted checkout credentials and behaviour flags.
type GatewayConfig struct {
	ID                   string        `yaml:"id"`
	Mode                 string        `yaml:"mode"`
	MerchantID           string        `yaml:"merchant_id"`
	Password             string        `yaml:"password"`
	TermsPath            string        `yaml:"terms_path"`
	Language             string        `yaml:"language"`
	UpdateBillingProfile bool          `yaml:"update_billing_profile"`
	BaseURL              string        `yaml:"base_url"`
	APIURL               string        `yaml:"api_url"`
	Provider             string        `yaml:"provider"`
	Timeout              time.Duration `yaml:"timeout"`
	LockTTL              time.Duration `yaml:"lock_ttl"`
}

func (g *GatewayConfig) applyDefaults() {
	if g.ID == "" {
		g.ID = "hosted_checkout"
	}
	if g.Mode == "" {
		g.Mode = ModeTest
	}
	if g.Language == "" {
		g.Language = "sv-se"
	}
	if g.Provider == "" {
		g.Provider = "http"
	}
	if g.Timeout == 0 {
		g.Timeout = 10 * time.Second
	}
	if g.LockTTL == 0 {
		g.LockTTL = lockTTLFactor * g.Timeout
	}
}

// IsLive reports whether real payments are taken.
func (g GatewayConfig) IsLive() bool {
	return g.Mode == ModeLive
}

// APIURI is the provider endpoint for the configured mode unless overridden.
func (g GatewayConfig) APIURI() string {
	if g.APIURL != "" {
		return g.APIURL
	}
	if g.IsLive() {
		return LiveAPIURL
	}
	return TestAPIURL
}

// TermsURL returns the terms page as an absolute URL. Relative paths are
// resolved against BaseURL.
func (g GatewayConfig) TermsURL() string {
	u, err := url.Parse(g.TermsPath)
	if err != nil || u.IsAbs() {
		return g.TermsPath
	}
	base, err := url.Parse(strings.TrimRight(g.BaseURL, "/") + "/")
	if err != nil {
		return g.TermsPath
	}
	return base.ResolveReference(u).String()
}

// Validate checks the fields the provider requires.
func (g GatewayConfig) Validate() error {
	var missing []string
	if g.MerchantID == "" {
		missing = append(missing, "merchant_id")
	}
	if g.Password == "" {
		missing = append(missing, "password")
	}
	if g.TermsPath == "" {
		missing = append(missing, "terms_path")
	}
	if g.BaseURL == "" {
		missing = append(missing, "base_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required gateway field(s) %s", domain.ErrConfiguration, strings.Join(missing, ", "))
	}
	if g.Mode != ModeLive && g.Mode != ModeTest {
		return fmt.Errorf("%w: unknown mode %q", domain.ErrConfiguration, g.Mode)
	}
	if g.Timeout > 0 && g.LockTTL <= providerCallsPerTransition*g.Timeout {
		return fmt.Errorf("%w: lock_ttl %s must exceed %d provider timeouts (%s)",
			domain.ErrConfiguration, g.LockTTL, providerCallsPerTransition, providerCallsPerTransition*g.Timeout)
	}
	if _, ok := CountryForLocale(g.Language); !ok {
		return fmt.Errorf("%w: no purchase country for locale %q", domain.ErrConfiguration, g.Language)
	}
	return nil
}
