package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"checkout-engine/internal/core/domain"
)

// PaymentMessage is the wire form of domain.PaymentEvent.
type PaymentMessage struct {
	EventID    string          `json:"event_id"`
	PaymentID  string          `json:"payment_id"`
	OrderID    string          `json:"order_id"`
	GatewayID  string          `json:"gateway_id"`
	RemoteID   string          `json:"remote_id"`
	State      string          `json:"state"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Test       bool            `json:"test"`
	OccurredAt string          `json:"occurred_at"`
}

func EncodePaymentEvent(e domain.PaymentEvent) ([]byte, error) {
	return json.Marshal(PaymentMessage{
		EventID:    e.EventID.String(),
		PaymentID:  e.PaymentID.String(),
		OrderID:    e.OrderID,
		GatewayID:  e.GatewayID,
		RemoteID:   e.RemoteID,
		State:      string(e.State),
		Amount:     e.Amount.Number,
		Currency:   e.Amount.Currency,
		Test:       e.Test,
		OccurredAt: e.OccurredAt.UTC().Format(time.RFC3339),
	})
}

// DecodePaymentEvent validates and converts a record value back to an event.
func DecodePaymentEvent(value []byte) (domain.PaymentEvent, error) {
	var msg PaymentMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("invalid payment message: %w", err)
	}

	eventID, err := uuid.Parse(msg.EventID)
	if err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("invalid event_id: %w", err)
	}
	paymentID, err := uuid.Parse(msg.PaymentID)
	if err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("invalid payment_id: %w", err)
	}
	occurredAt, err := time.Parse(time.RFC3339, msg.OccurredAt)
	if err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("invalid occurred_at: %w", err)
	}
	if msg.OrderID == "" {
		return domain.PaymentEvent{}, fmt.Errorf("invalid payment message: empty order_id")
	}

	return domain.PaymentEvent{
		EventID:    eventID,
		PaymentID:  paymentID,
		OrderID:    msg.OrderID,
		GatewayID:  msg.GatewayID,
		RemoteID:   msg.RemoteID,
		State:      domain.PaymentState(msg.State),
		Amount:     domain.Price{Number: msg.Amount, Currency: msg.Currency},
		Test:       msg.Test,
		OccurredAt: occurredAt,
	}, nil
}
