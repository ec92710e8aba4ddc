package domain

// RemoteStatus is drawn from the provider's status vocabulary.
type RemoteStatus string

const (
	StatusCheckoutIncomplete RemoteStatus = "checkout_incomplete"
	StatusCheckoutComplete   RemoteStatus = "checkout_complete"
	StatusCreated            RemoteStatus = "created"
)

// RemoteTransaction is the provider-side checkout session as last fetched.
// It is never cached beyond one reconciliation pass.
type RemoteTransaction struct {
	ID             string
	Status         RemoteStatus
	BillingAddress *BillingAddress
	Snippet        string
	Values         Values
}

// BillingAddress is the provider's billing address sub-object. Nordic
// countries send StreetAddress, DE/AT send StreetName and StreetNumber.
type BillingAddress struct {
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	StreetAddress string `json:"street_address,omitempty"`
	StreetName    string `json:"street_name,omitempty"`
	StreetNumber  string `json:"street_number,omitempty"`
	PostalCode    string `json:"postal_code"`
	City          string `json:"city"`
	Country       string `json:"country"`
	Email         string `json:"email,omitempty"`
}

// Address is the local structured postal address.
type Address struct {
	GivenName    string `json:"given_name"`
	FamilyName   string `json:"family_name"`
	AddressLine1 string `json:"address_line1"`
	PostalCode   string `json:"postal_code"`
	Locality     string `json:"locality"`
	CountryCode  string `json:"country_code"`
}

type BillingProfile struct {
	ID      string  `json:"id"`
	Address Address `json:"address"`
}

// Step tags an extension hook invocation.
type Step string

const (
	StepCreate  Step = "create"
	StepCreated Step = "created"
)

// Values is the mutable map form of an outbound create or update body.
type Values map[string]any

// Clone copies the top level of v.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Line item types understood by the provider.
const (
	LineItemDiscount    = "discount"
	LineItemShippingFee = "shipping_fee"
)

// LineItem is a cart row in minor units. TaxRate is percent x 10000.
type LineItem struct {
	Reference string `json:"reference"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	TaxRate   int64  `json:"tax_rate"`
	Type      string `json:"type,omitempty"`
	Weight    int    `json:"-"`
}

type Cart struct {
	Items []LineItem `json:"items"`
}

type Merchant struct {
	ID              string `json:"id"`
	TermsURI        string `json:"terms_uri"`
	CheckoutURI     string `json:"checkout_uri"`
	ConfirmationURI string `json:"confirmation_uri"`
	PushURI         string `json:"push_uri"`
	BackToStoreURI  string `json:"back_to_store_uri"`
}

// TransactionPayload is the compiled transaction creation body.
type TransactionPayload struct {
	Cart              Cart              `json:"cart"`
	PurchaseCountry   string            `json:"purchase_country"`
	PurchaseCurrency  string            `json:"purchase_currency"`
	Locale            string            `json:"locale"`
	MerchantReference map[string]string `json:"merchant_reference"`
	Merchant          Merchant          `json:"merchant"`
}

// Values converts the payload to the map handed to extension hooks.
// Integers stay integers so hooks can do arithmetic on them.
func (p TransactionPayload) Values() Values {
	items := make([]any, 0, len(p.Cart.Items))
	for _, it := range p.Cart.Items {
		m := map[string]any{
			"reference":  it.Reference,
			"name":       it.Name,
			"quantity":   it.Quantity,
			"unit_price": it.UnitPrice,
			"tax_rate":   it.TaxRate,
		}
		if it.Type != "" {
			m["type"] = it.Type
		}
		items = append(items, m)
	}

	ref := make(map[string]any, len(p.MerchantReference))
	for k, v := range p.MerchantReference {
		ref[k] = v
	}

	return Values{
		"cart":               map[string]any{"items": items},
		"purchase_country":   p.PurchaseCountry,
		"purchase_currency":  p.PurchaseCurrency,
		"locale":             p.Locale,
		"merchant_reference": ref,
		"merchant": map[string]any{
			"id":                p.Merchant.ID,
			"terms_uri":         p.Merchant.TermsURI,
			"checkout_uri":      p.Merchant.CheckoutURI,
			"confirmation_uri":  p.Merchant.ConfirmationURI,
			"push_uri":          p.Merchant.PushURI,
			"back_to_store_uri": p.Merchant.BackToStoreURI,
		},
	}
}
