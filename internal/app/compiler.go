package app

import (
	"fmt"

	"checkout-engine/internal/config"
	"checkout-engine/internal/core/domain"
	"checkout-engine/internal/pricing"
)

// merchantReferenceKey is the provider's merchant reference slot for the order id.
const merchantReferenceKey = "orderid1"

// Compiler assembles the transaction creation payload for an order.
type Compiler struct {
	cfg  config.GatewayConfig
	urls CallbackURLs
}

func NewCompiler(cfg config.GatewayConfig) *Compiler {
	return &Compiler{
		cfg:  cfg,
		urls: NewCallbackURLs(cfg.BaseURL, cfg.ID),
	}
}

// Compile fails with a configuration error when the gateway locale has no
// purchase country or the merchant id is missing.
func (c *Compiler) Compile(order *domain.Order) (*domain.TransactionPayload, error) {
	country, ok := config.CountryForLocale(c.cfg.Language)
	if !ok {
		return nil, &domain.CheckoutError{
			Kind:    domain.ErrConfiguration,
			Op:      "compile",
			OrderID: order.ID,
			Msg:     fmt.Sprintf("no purchase country for locale %q", c.cfg.Language),
		}
	}
	if c.cfg.MerchantID == "" {
		return nil, &domain.CheckoutError{
			Kind:    domain.ErrConfiguration,
			Op:      "compile",
			OrderID: order.ID,
			Msg:     "missing required gateway field merchant_id",
		}
	}

	return &domain.TransactionPayload{
		Cart:              domain.Cart{Items: pricing.CartLines(order)},
		PurchaseCountry:   country,
		PurchaseCurrency:  order.TotalPrice.Currency,
		Locale:            c.cfg.Language,
		MerchantReference: map[string]string{merchantReferenceKey: order.ID},
		Merchant: domain.Merchant{
			ID:              c.cfg.MerchantID,
			TermsURI:        c.cfg.TermsURL(),
			CheckoutURI:     c.urls.Cancel(order.ID),
			ConfirmationURI: c.urls.Return(order.ID),
			PushURI:         c.urls.Notify(order.ID),
			BackToStoreURI:  c.urls.Cancel(order.ID),
		},
	}, nil
}
