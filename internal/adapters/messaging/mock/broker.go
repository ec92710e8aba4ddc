package mock

import (
	"context"
	"log/slog"
	"sync"

	"checkout-engine/internal/core/domain"
)

// Broker is a stand-in MessageBroker that logs events and keeps them in memory.
type Broker struct {
	logger *slog.Logger
	mu     sync.Mutex
	events []domain.PaymentEvent
}

func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{logger: logger}
}

func (b *Broker) Close() {}

func (b *Broker) PublishPaymentCompleted(_ context.Context, event domain.PaymentEvent) error {
	b.mu.Lock()
	b.events = append(b.events, event)
	b.mu.Unlock()

	b.logger.Info("[MOCK] payment completed",
		"order_id", event.OrderID,
		"payment_id", event.PaymentID,
		"amount", event.Amount.String(),
	)
	return nil
}

// Events returns a copy of every published event.
func (b *Broker) Events() []domain.PaymentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.PaymentEvent(nil), b.events...)
}
