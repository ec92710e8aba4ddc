package app

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-engine/internal/core/domain"
)

func TestCompiler_Compile(t *testing.T) {
	c := NewCompiler(testGatewayConfig())

	payload, err := c.Compile(testOrder())
	require.NoError(t, err)

	assert.Equal(t, &domain.TransactionPayload{
		Cart: domain.Cart{Items: []domain.LineItem{{
			Reference: "Test product",
			Name:      "Test product",
			Quantity:  1,
			UnitPrice: 1100,
			TaxRate:   240000,
		}}},
		PurchaseCountry:   "SE",
		PurchaseCurrency:  "EUR",
		Locale:            "sv-se",
		MerchantReference: map[string]string{"orderid1": "1"},
		Merchant: domain.Merchant{
			ID:              "0",
			TermsURI:        "http://shop.test/terms",
			CheckoutURI:     "http://shop.test/checkout/1/payment/cancel?payment_gateway=hosted_checkout",
			ConfirmationURI: "http://shop.test/checkout/1/payment/return?payment_gateway=hosted_checkout",
			PushURI:         "http://shop.test/payment/notify/hosted_checkout?order=1&step=complete",
			BackToStoreURI:  "http://shop.test/checkout/1/payment/cancel?payment_gateway=hosted_checkout",
		},
	}, payload)
}

func TestCompiler_Compile_AdjustmentRowsFollowItems(t *testing.T) {
	order := testOrder()
	shippingWeight, promoWeight := 10, -5
	order.Adjustments = []domain.Adjustment{
		{Type: domain.AdjustmentShipping, SourceID: "s1", Label: "Shipping", Amount: decimal.RequireFromString("4.90"), Weight: &shippingWeight},
		{Type: domain.AdjustmentPromotion, SourceID: "p1", Label: "Promo", Amount: decimal.RequireFromString("-1")},
		{Type: domain.AdjustmentPromotion, SourceID: "p1", Label: "Promo", Amount: decimal.RequireFromString("-0.50"), Weight: &promoWeight},
		{Type: domain.AdjustmentTax, Label: "VAT", Percentage: decimal.NewFromInt(24)},
	}

	payload, err := NewCompiler(testGatewayConfig()).Compile(order)
	require.NoError(t, err)

	items := payload.Cart.Items
	require.Len(t, items, 3)
	assert.Equal(t, "Test product", items[0].Name)
	// Promo merged (-150) with weight 0 from its first row, sorted before shipping.
	assert.Equal(t, int64(-150), items[1].UnitPrice)
	assert.Equal(t, domain.LineItemDiscount, items[1].Type)
	assert.Equal(t, int64(490), items[2].UnitPrice)
	assert.Equal(t, domain.LineItemShippingFee, items[2].Type)
}

func TestCompiler_Compile_ConfigurationErrors(t *testing.T) {
	t.Run("unmapped locale", func(t *testing.T) {
		cfg := testGatewayConfig()
		cfg.Language = "en-us"

		_, err := NewCompiler(cfg).Compile(testOrder())

		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("missing merchant id", func(t *testing.T) {
		cfg := testGatewayConfig()
		cfg.MerchantID = ""

		_, err := NewCompiler(cfg).Compile(testOrder())

		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

func TestCompiler_Values(t *testing.T) {
	payload, err := NewCompiler(testGatewayConfig()).Compile(testOrder())
	require.NoError(t, err)

	v := payload.Values()

	items := v["cart"].(map[string]any)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1100), items[0].(map[string]any)["unit_price"])
	assert.Equal(t, map[string]any{"orderid1": "1"}, v["merchant_reference"])
	assert.Equal(t, "SE", v["purchase_country"])
}
