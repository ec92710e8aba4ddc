package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentState is our own type for payment states to avoid "magic strings".
type PaymentState string

const (
	PaymentAuthorization PaymentState = "authorization"
	PaymentCompleted     PaymentState = "completed"
)

// RemoteStatePaid is recorded on payments created from a completed checkout.
const RemoteStatePaid = "paid"

// Payment is the local record of a hosted checkout. At most one exists per
// (OrderID, GatewayID).
type Payment struct {
	ID           uuid.UUID
	State        PaymentState
	Amount       Price
	OrderID      string
	GatewayID    string
	RemoteID     string
	RemoteState  string
	Test         bool
	AuthorizedAt time.Time
	CompletedAt  *time.Time
}

// Complete marks the payment captured. It reports whether the state changed.
func (p *Payment) Complete(at time.Time) bool {
	if p.State == PaymentCompleted {
		return false
	}
	p.State = PaymentCompleted
	p.CompletedAt = &at
	return true
}

// PaymentEvent is published once a payment has been acknowledged by the provider.
type PaymentEvent struct {
	EventID    uuid.UUID
	PaymentID  uuid.UUID
	OrderID    string
	GatewayID  string
	RemoteID   string
	State      PaymentState
	Amount     Price
	Test       bool
	OccurredAt time.Time
}
