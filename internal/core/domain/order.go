package domain

import (
	"github.com/shopspring/decimal"
)

// Price is a decimal amount tagged with an ISO 4217 currency code.
type Price struct {
	Number   decimal.Decimal `json:"number"`
	Currency string          `json:"currency_code"`
}

// NewPrice parses a decimal string such as "11.00".
func NewPrice(number, currency string) (Price, error) {
	d, err := decimal.NewFromString(number)
	if err != nil {
		return Price{}, err
	}
	return Price{Number: d, Currency: currency}, nil
}

// MustPrice is NewPrice for literals known to be valid.
func MustPrice(number, currency string) Price {
	p, err := NewPrice(number, currency)
	if err != nil {
		panic(err)
	}
	return p
}

// Equal reports whether both prices carry the same currency and amount.
func (p Price) Equal(other Price) bool {
	return p.Currency == other.Currency && p.Number.Equal(other.Number)
}

func (p Price) String() string {
	return p.Number.StringFixed(2) + " " + p.Currency
}

// AdjustmentType avoids magic strings for adjustment kinds.
type AdjustmentType string

const (
	AdjustmentTax       AdjustmentType = "tax"
	AdjustmentPromotion AdjustmentType = "promotion"
	AdjustmentShipping  AdjustmentType = "shipping"
	AdjustmentOther     AdjustmentType = "other"
)

// Adjustment is a price modifier attached to an order or an order item.
// Percentage is only meaningful for tax adjustments and is expressed in
// percent ("24" for 24%). Weight orders synthetic line items; nil sorts as 0.
type Adjustment struct {
	Type       AdjustmentType  `json:"type"`
	SourceID   string          `json:"source_id,omitempty"`
	Label      string          `json:"label"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency_code"`
	Percentage decimal.Decimal `json:"percentage"`
	Weight     *int            `json:"weight,omitempty"`
}

// OrderItem is a purchased line of an order.
type OrderItem struct {
	Title       string       `json:"title"`
	Quantity    int          `json:"quantity"`
	UnitPrice   Price        `json:"unit_price"`
	Adjustments []Adjustment `json:"adjustments,omitempty"`
}

// DataKeyRemoteID is the data bag key holding the remote transaction id.
const DataKeyRemoteID = "remote_transaction_id"

// Order is owned by the order subsystem. The engine only reads it, except for
// the remote transaction id, the workflow state and the billing profile.
type Order struct {
	ID             string            `json:"id"`
	Items          []OrderItem       `json:"items"`
	Adjustments    []Adjustment      `json:"adjustments,omitempty"`
	TotalPrice     Price             `json:"total_price"`
	Data           map[string]string `json:"data,omitempty"`
	State          OrderState        `json:"state"`
	Workflow       Workflow          `json:"workflow"`
	BillingProfile *BillingProfile   `json:"billing_profile,omitempty"`
}

// RemoteRef returns whether a remote transaction has been attached.
func (o *Order) RemoteRef() RemoteRef {
	if id := o.Data[DataKeyRemoteID]; id != "" {
		return HasRemote(id)
	}
	return NoRemote()
}

// AttachRemote records the id of a freshly created remote transaction.
// It must only be called on the creation branch.
func (o *Order) AttachRemote(id string) {
	if o.Data == nil {
		o.Data = make(map[string]string)
	}
	o.Data[DataKeyRemoteID] = id
}

// ApplyTransition moves the order along the named workflow transition when it
// is allowed from the current state. It reports whether the state changed.
func (o *Order) ApplyTransition(id string) bool {
	t, ok := o.Workflow.Transition(id, o.State)
	if !ok {
		return false
	}
	o.State = t.To
	return true
}

// RemoteRef is either NoRemote or HasRemote(id).
type RemoteRef struct {
	id string
}

func NoRemote() RemoteRef { return RemoteRef{} }

func HasRemote(id string) RemoteRef { return RemoteRef{id: id} }

// ID returns the remote id and true for HasRemote, "" and false otherwise.
func (r RemoteRef) ID() (string, bool) {
	return r.id, r.id != ""
}

func (r RemoteRef) String() string {
	if r.id == "" {
		return "none"
	}
	return r.id
}
