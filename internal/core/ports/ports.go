package ports

import (
	"context"
	"time"

	"checkout-engine/internal/core/domain"
)

// RemoteTransactionGateway is an "outgoing port" to the hosted checkout provider.
// Implementations report every transport, auth or rejection failure wrapped in
// domain.ErrRemote, and a missing resource as domain.ErrRemoteNotFound.
type RemoteTransactionGateway interface {
	Create(ctx context.Context, values domain.Values) (*domain.RemoteTransaction, error)
	Fetch(ctx context.Context, id string) (*domain.RemoteTransaction, error)
	Update(ctx context.Context, id string, values domain.Values) (*domain.RemoteTransaction, error)
}

// OrderRepository reads and persists orders owned by the order subsystem.
type OrderRepository interface {
	Get(ctx context.Context, id string) (*domain.Order, error)
	Save(ctx context.Context, order *domain.Order) error
}

// PaymentRepository stores payments. Create must fail with
// domain.ErrPaymentExists when a payment for the same order and gateway exists.
type PaymentRepository interface {
	FindForOrder(ctx context.Context, orderID, gatewayID string) (*domain.Payment, error)
	Create(ctx context.Context, payment domain.Payment) error
	Save(ctx context.Context, payment domain.Payment) error
}

// OrderLocker scopes a reconciliation transition to one caller per order.
type OrderLocker interface {
	Lock(ctx context.Context, orderID string) (unlock func(context.Context) error, err error)
}

// MessageBroker is another outgoing port for sending messages.
type MessageBroker interface {
	PublishPaymentCompleted(ctx context.Context, event domain.PaymentEvent) error
}

// RateLimiterRepository backs the public callback rate limiter.
type RateLimiterRepository interface {
	IsAllowed(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// CheckoutService is an "incoming port" that defines how the outside world can interact with our kernel.
type CheckoutService interface {
	StartCheckout(ctx context.Context, orderID string) (*domain.RemoteTransaction, error)
	OnReturn(ctx context.Context, orderID string) (*domain.Payment, error)
	OnNotify(ctx context.Context, orderID string) error
	CompilePayload(ctx context.Context, orderID string) (*domain.TransactionPayload, error)
}
