// Package memory provides in-process repositories for development and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"checkout-engine/internal/core/domain"
)

// OrderStore keeps orders as encoded documents so callers never share state.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string][]byte
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string][]byte)}
}

func (s *OrderStore) Get(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	doc, ok := s.orders[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrOrderNotFound)
	}

	var order domain.Order
	if err := json.Unmarshal(doc, &order); err != nil {
		return nil, fmt.Errorf("failed to decode order %s: %w", id, err)
	}
	return &order, nil
}

func (s *OrderStore) Save(_ context.Context, order *domain.Order) error {
	doc, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to encode order %s: %w", order.ID, err)
	}
	s.mu.Lock()
	s.orders[order.ID] = doc
	s.mu.Unlock()
	return nil
}

type paymentKey struct {
	orderID   string
	gatewayID string
}

// PaymentStore enforces one payment per order and gateway.
type PaymentStore struct {
	mu       sync.RWMutex
	payments map[paymentKey]domain.Payment
}

func NewPaymentStore() *PaymentStore {
	return &PaymentStore{payments: make(map[paymentKey]domain.Payment)}
}

func (s *PaymentStore) FindForOrder(_ context.Context, orderID, gatewayID string) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[paymentKey{orderID, gatewayID}]
	if !ok {
		return nil, fmt.Errorf("payment for order %s: %w", orderID, domain.ErrPaymentNotFound)
	}
	return &p, nil
}

func (s *PaymentStore) Create(_ context.Context, p domain.Payment) error {
	key := paymentKey{p.OrderID, p.GatewayID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[key]; ok {
		return fmt.Errorf("order %s gateway %s: %w", p.OrderID, p.GatewayID, domain.ErrPaymentExists)
	}
	s.payments[key] = p
	return nil
}

func (s *PaymentStore) Save(_ context.Context, p domain.Payment) error {
	key := paymentKey{p.OrderID, p.GatewayID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.payments[key]; !ok || existing.ID != p.ID {
		return fmt.Errorf("payment %s: %w", p.ID, domain.ErrPaymentNotFound)
	}
	s.payments[key] = p
	return nil
}

// Count returns the number of stored payments.
func (s *PaymentStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.payments)
}
