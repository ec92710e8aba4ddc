package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"checkout-engine/internal/config"
	"checkout-engine/internal/core/domain"
	"checkout-engine/internal/core/ports"
)

// service is the implementation of the CheckoutService port
type service struct {
	cfg      config.GatewayConfig
	compiler *Compiler
	hooks    *Hooks
	gateway  ports.RemoteTransactionGateway
	orders   ports.OrderRepository
	payments ports.PaymentRepository
	locker   ports.OrderLocker
	broker   ports.MessageBroker
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*service)

// WithHooks installs the extension hook chain.
func WithHooks(h *Hooks) Option {
	return func(s *service) { s.hooks = h }
}

// WithLocker scopes every transition to a per-order lock.
func WithLocker(l ports.OrderLocker) Option {
	return func(s *service) { s.locker = l }
}

// WithBroker publishes a payment event after each acknowledged payment.
func WithBroker(b ports.MessageBroker) Option {
	return func(s *service) { s.broker = b }
}

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// NewCheckoutService is the constructor of our service.
// It accepts dependencies via interfaces (Dependency Injection).
func NewCheckoutService(
	cfg config.GatewayConfig,
	gateway ports.RemoteTransactionGateway,
	orders ports.OrderRepository,
	payments ports.PaymentRepository,
	logger *slog.Logger,
	opts ...Option,
) ports.CheckoutService {
	s := &service{
		cfg:      cfg,
		compiler: NewCompiler(cfg),
		hooks:    NewHooks(),
		gateway:  gateway,
		orders:   orders,
		payments: payments,
		locker:   noLocker{},
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) CompilePayload(ctx context.Context, orderID string) (*domain.TransactionPayload, error) {
	order, err := s.loadOrder(ctx, "compile", orderID)
	if err != nil {
		return nil, err
	}
	return s.compiler.Compile(order)
}

// StartCheckout compiles the order, lets hooks rewrite it and creates the
// remote transaction, or updates the stored one when it is still fetchable.
// The remote id is written to the order only on the creation branch.
func (s *service) StartCheckout(ctx context.Context, orderID string) (*domain.RemoteTransaction, error) {
	unlock, err := s.lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.loadOrder(ctx, "create", orderID)
	if err != nil {
		return nil, err
	}

	payload, err := s.compiler.Compile(order)
	if err != nil {
		s.logger.Error("Failed to compile transaction payload", domain.ErrorAttrs(err)...)
		return nil, err
	}

	values, err := s.runHooks(ctx, order, domain.StepCreate, payload.Values())
	if err != nil {
		return nil, err
	}

	tx, created, err := s.createOrUpdate(ctx, order, values)
	if err != nil {
		s.logger.Error("Failed to create remote transaction", domain.ErrorAttrs(err)...)
		return nil, err
	}
	if tx == nil || tx.ID == "" {
		return nil, &domain.CheckoutError{
			Kind:    domain.ErrValidation,
			Op:      "create",
			OrderID: order.ID,
			Msg:     fmt.Sprintf("Failed to fetch remote transaction id for order %s", order.ID),
		}
	}

	fetched, err := s.gateway.Fetch(ctx, tx.ID)
	if err != nil {
		s.logger.Error("Failed to fetch remote transaction", "order_id", order.ID, "remote_id", tx.ID, "error", err)
		return nil, remoteError("create", order.ID, tx.ID, err)
	}
	if fetched == nil {
		return nil, noRemoteDetails("create", order.ID, tx.ID, nil)
	}
	if fetched.ID == "" {
		fetched.ID = tx.ID
	}
	tx = fetched

	if created {
		order.AttachRemote(tx.ID)
		if err := s.orders.Save(ctx, order); err != nil {
			return nil, fmt.Errorf("failed to save order %s: %w", order.ID, err)
		}
	}

	s.logger.Info("remote transaction ready",
		"order_id", order.ID, "remote_id", tx.ID, "status", tx.Status, "created", created)
	return tx, nil
}

// createOrUpdate updates the stored remote transaction. A new one is created
// only when none is stored or the provider no longer knows the stored id;
// other fetch failures are returned so a paid checkout is never replaced.
func (s *service) createOrUpdate(ctx context.Context, order *domain.Order, values domain.Values) (*domain.RemoteTransaction, bool, error) {
	if id, ok := order.RemoteRef().ID(); ok {
		_, err := s.gateway.Fetch(ctx, id)
		switch {
		case err == nil:
			tx, err := s.gateway.Update(ctx, id, values)
			if err != nil {
				return nil, false, remoteError("update", order.ID, id, err)
			}
			if tx == nil {
				tx = &domain.RemoteTransaction{}
			}
			if tx.ID == "" {
				tx.ID = id
			}
			return tx, false, nil
		case errors.Is(err, domain.ErrRemoteNotFound):
			s.logger.Warn("stored remote transaction is gone, creating a new one",
				"order_id", order.ID, "remote_id", id, "error", err)
		default:
			return nil, false, remoteError("update", order.ID, id, err)
		}
	}

	tx, err := s.gateway.Create(ctx, values)
	if err != nil {
		return nil, true, remoteError("create", order.ID, "", err)
	}
	return tx, true, nil
}

// OnReturn handles the customer's redirect back from the provider. It fails
// until the provider reports the checkout complete, then records the payment
// once. A transaction already acknowledged as created counts as complete, so
// a return arriving after the notification still creates the authorization
// payment if none exists.
func (s *service) OnReturn(ctx context.Context, orderID string) (*domain.Payment, error) {
	unlock, err := s.lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.loadOrder(ctx, "return", orderID)
	if err != nil {
		return nil, err
	}

	tx, err := s.fetchComplete(ctx, "return", order)
	if err != nil {
		s.logger.Error("Confirmation failed for order", domain.ErrorAttrs(err)...)
		return nil, err
	}

	return s.ensurePayment(ctx, "return", order, tx)
}

// OnNotify handles the provider's push notification. Every failure leaves
// the order re-enterable; the provider retries delivery until acknowledged.
func (s *service) OnNotify(ctx context.Context, orderID string) error {
	if orderID == "" {
		return invalidOrder(orderID)
	}

	unlock, err := s.lock(ctx, orderID)
	if err != nil {
		return err
	}
	defer unlock()

	order, err := s.orders.Get(ctx, orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return invalidOrder(orderID)
	}
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", orderID, err)
	}

	tx, err := s.fetchComplete(ctx, "notify", order)
	if err != nil {
		s.logger.Error("Push notification rejected", domain.ErrorAttrs(err)...)
		return err
	}

	// Usually created by OnReturn, unless the notification beat the customer back.
	payment, err := s.ensurePayment(ctx, "notify", order, tx)
	if err != nil {
		return err
	}

	if s.cfg.UpdateBillingProfile && tx.BillingAddress != nil {
		if UpdateBillingProfile(order, *tx.BillingAddress) {
			s.logger.Debug("billing profile updated from provider", "order_id", order.ID)
		}
	}

	update, err := s.runHooks(ctx, order, domain.StepCreated, domain.Values{"status": string(domain.StatusCreated)})
	if err != nil {
		return err
	}

	acked, err := s.gateway.Update(ctx, tx.ID, update)
	if err != nil {
		err = remoteError("acknowledge", order.ID, tx.ID, err)
		s.logger.Error("Failed to acknowledge remote transaction", domain.ErrorAttrs(err)...)
		return err
	}
	if acked == nil || acked.Status == "" {
		if acked, err = s.gateway.Fetch(ctx, tx.ID); err != nil {
			return remoteError("acknowledge", order.ID, tx.ID, err)
		}
	}

	if acked.Status != domain.StatusCreated {
		err := &domain.CheckoutError{
			Kind:     domain.ErrAcknowledgementPending,
			Op:       "acknowledge",
			OrderID:  order.ID,
			RemoteID: tx.ID,
			Status:   acked.Status,
			Msg: fmt.Sprintf("Push notification for order %s [state: %s, ref: %s] ignored. Remote transaction status not updated.",
				order.ID, order.State, tx.ID),
		}
		s.logger.Warn("Push notification ignored", domain.ErrorAttrs(err)...)
		return err
	}

	completed := payment.Complete(s.now())
	if completed {
		if err := s.payments.Save(ctx, *payment); err != nil {
			return fmt.Errorf("failed to save payment %s: %w", payment.ID, err)
		}
	}

	transitioned := order.ApplyTransition(domain.TransitionValidate)
	if err := s.orders.Save(ctx, order); err != nil {
		return fmt.Errorf("failed to save order %s: %w", order.ID, err)
	}

	if completed {
		s.publish(ctx, payment)
	}

	s.logger.Info("checkout completed",
		"order_id", order.ID,
		"remote_id", tx.ID,
		"payment_id", payment.ID,
		"payment_completed", completed,
		"order_state", order.State,
		"transitioned", transitioned,
	)
	return nil
}

// fetchComplete loads the remote transaction and requires a completed checkout.
func (s *service) fetchComplete(ctx context.Context, op string, order *domain.Order) (*domain.RemoteTransaction, error) {
	id, ok := order.RemoteRef().ID()
	if !ok {
		return nil, noRemoteDetails(op, order.ID, "", nil)
	}

	tx, err := s.gateway.Fetch(ctx, id)
	if errors.Is(err, domain.ErrRemoteNotFound) {
		return nil, noRemoteDetails(op, order.ID, id, err)
	}
	if err != nil {
		return nil, remoteError(op, order.ID, id, err)
	}
	if tx == nil {
		return nil, noRemoteDetails(op, order.ID, id, nil)
	}

	// created means a previous notification was acknowledged; repeats are no-ops.
	if tx.Status != domain.StatusCheckoutComplete && tx.Status != domain.StatusCreated {
		return nil, &domain.CheckoutError{
			Kind:     domain.ErrValidation,
			Op:       op,
			OrderID:  order.ID,
			RemoteID: id,
			Status:   tx.Status,
			Msg:      fmt.Sprintf("Invalid order status (%s) received from provider for order %s", tx.Status, order.ID),
		}
	}
	return tx, nil
}

// ensurePayment returns the order's payment for this gateway, creating it in
// the authorization state when none exists. A concurrent creator losing the
// uniqueness race re-reads the winner's row.
func (s *service) ensurePayment(ctx context.Context, op string, order *domain.Order, tx *domain.RemoteTransaction) (*domain.Payment, error) {
	existing, err := s.payments.FindForOrder(ctx, order.ID, s.cfg.ID)
	switch {
	case err == nil:
		return s.matchPayment(op, order, existing)
	case !errors.Is(err, domain.ErrPaymentNotFound):
		return nil, fmt.Errorf("failed to look up payment for order %s: %w", order.ID, err)
	}

	payment := domain.Payment{
		ID:           uuid.New(),
		State:        domain.PaymentAuthorization,
		Amount:       order.TotalPrice,
		OrderID:      order.ID,
		GatewayID:    s.cfg.ID,
		RemoteID:     tx.ID,
		RemoteState:  domain.RemoteStatePaid,
		Test:         !s.cfg.IsLive(),
		AuthorizedAt: s.now(),
	}

	err = s.payments.Create(ctx, payment)
	if errors.Is(err, domain.ErrPaymentExists) {
		existing, err := s.payments.FindForOrder(ctx, order.ID, s.cfg.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload payment for order %s: %w", order.ID, err)
		}
		return s.matchPayment(op, order, existing)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create payment for order %s: %w", order.ID, err)
	}

	s.logger.Info("payment created",
		"order_id", order.ID, "remote_id", tx.ID, "payment_id", payment.ID, "amount", payment.Amount.String(), "path", op)
	return &payment, nil
}

func (s *service) matchPayment(op string, order *domain.Order, p *domain.Payment) (*domain.Payment, error) {
	if !p.Amount.Equal(order.TotalPrice) {
		return nil, &domain.CheckoutError{
			Kind:     domain.ErrValidation,
			Op:       op,
			OrderID:  order.ID,
			RemoteID: p.RemoteID,
			Msg: fmt.Sprintf("Payment %s for order %s amounts to %s but the order total is %s",
				p.ID, order.ID, p.Amount, order.TotalPrice),
		}
	}
	return p, nil
}

func (s *service) runHooks(ctx context.Context, order *domain.Order, step domain.Step, values domain.Values) (domain.Values, error) {
	out, err := s.hooks.Run(ctx, order, step, values)
	if err != nil {
		return nil, &domain.CheckoutError{
			Kind:    domain.ErrValidation,
			Op:      "hook",
			OrderID: order.ID,
			Msg:     fmt.Sprintf("transaction hook rejected %s step for order %s: %v", step, order.ID, err),
			Err:     err,
		}
	}
	return out, nil
}

func (s *service) publish(ctx context.Context, p *domain.Payment) {
	if s.broker == nil {
		return
	}
	event := domain.PaymentEvent{
		EventID:    uuid.New(),
		PaymentID:  p.ID,
		OrderID:    p.OrderID,
		GatewayID:  p.GatewayID,
		RemoteID:   p.RemoteID,
		State:      p.State,
		Amount:     p.Amount,
		Test:       p.Test,
		OccurredAt: s.now(),
	}
	// The payment is already committed; a lost event must not fail the notification.
	if err := s.broker.PublishPaymentCompleted(ctx, event); err != nil {
		s.logger.Warn("failed to publish payment event", "order_id", p.OrderID, "payment_id", p.ID, "error", err)
	}
}

func (s *service) loadOrder(ctx context.Context, op, orderID string) (*domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return nil, &domain.CheckoutError{
			Kind:    domain.ErrBadRequest,
			Op:      op,
			OrderID: orderID,
			Msg:     fmt.Sprintf("invalid order %s", orderID),
			Err:     err,
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	return order, nil
}

func (s *service) lock(ctx context.Context, orderID string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock order %s: %w", orderID, err)
	}
	return func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release order lock", "order_id", orderID, "error", err)
		}
	}, nil
}

func invalidOrder(orderID string) error {
	return &domain.CheckoutError{
		Kind:    domain.ErrBadRequest,
		Op:      "notify",
		OrderID: orderID,
		Msg:     fmt.Sprintf("Notify callback called for an invalid order %q", orderID),
	}
}

func noRemoteDetails(op, orderID, remoteID string, cause error) error {
	return &domain.CheckoutError{
		Kind:     domain.ErrValidation,
		Op:       op,
		OrderID:  orderID,
		RemoteID: remoteID,
		Msg:      fmt.Sprintf("No order details returned from provider for order %s", orderID),
		Err:      cause,
	}
}

func remoteError(op, orderID, remoteID string, err error) error {
	return &domain.CheckoutError{
		Kind:     domain.ErrRemote,
		Op:       op,
		OrderID:  orderID,
		RemoteID: remoteID,
		Err:      err,
	}
}

type noLocker struct{}

func (noLocker) Lock(context.Context, string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
