// Package mock is an in-memory hosted checkout provider for local runs and tests.
package mock

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/go-faker/faker/v4"
	"github.com/google/uuid"

	"checkout-engine/internal/core/domain"
)

// Provider implements the RemoteTransactionGateway port in memory. Checkouts
// start incomplete; Complete plays the customer finishing the payment form.
type Provider struct {
	mu     sync.Mutex
	orders map[string]*domain.RemoteTransaction
	// stuck makes acknowledgement updates leave the status unchanged.
	stuck bool
	calls map[string]int
}

func NewProvider() *Provider {
	return &Provider{
		orders: make(map[string]*domain.RemoteTransaction),
		calls:  make(map[string]int),
	}
}

func (p *Provider) Create(_ context.Context, values domain.Values) (*domain.RemoteTransaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["create"]++

	id := uuid.NewString()
	p.orders[id] = &domain.RemoteTransaction{
		ID:      id,
		Status:  domain.StatusCheckoutIncomplete,
		Snippet: fmt.Sprintf(`<div id="checkout-container" data-order="%s"></div>`, id),
		Values:  maps.Clone(values),
	}
	return &domain.RemoteTransaction{ID: id}, nil
}

func (p *Provider) Fetch(_ context.Context, id string) (*domain.RemoteTransaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["fetch"]++

	tx, ok := p.orders[id]
	if !ok {
		return nil, fmt.Errorf("fetch %s: %w", id, domain.ErrRemoteNotFound)
	}
	return copyTx(tx), nil
}

// Update merges values into the checkout. A status of "created" is only
// accepted once the checkout is complete.
func (p *Provider) Update(_ context.Context, id string, values domain.Values) (*domain.RemoteTransaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["update"]++

	tx, ok := p.orders[id]
	if !ok {
		return nil, fmt.Errorf("update %s: %w", id, domain.ErrRemoteNotFound)
	}

	for k, v := range values {
		if k != "status" {
			if tx.Values == nil {
				tx.Values = domain.Values{}
			}
			tx.Values[k] = v
			continue
		}
		status, _ := v.(string)
		if !p.stuck && domain.RemoteStatus(status) == domain.StatusCreated &&
			(tx.Status == domain.StatusCheckoutComplete || tx.Status == domain.StatusCreated) {
			tx.Status = domain.StatusCreated
		}
	}
	return copyTx(tx), nil
}

// Complete marks the checkout as paid with a generated billing address.
func (p *Provider) Complete(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, ok := p.orders[id]
	if !ok {
		return fmt.Errorf("complete %s: %w", id, domain.ErrRemoteNotFound)
	}
	if tx.Status != domain.StatusCheckoutIncomplete {
		return nil
	}

	addr := faker.GetRealAddress()
	tx.Status = domain.StatusCheckoutComplete
	tx.BillingAddress = &domain.BillingAddress{
		GivenName:     faker.FirstName(),
		FamilyName:    faker.LastName(),
		StreetAddress: addr.Address,
		PostalCode:    addr.PostalCode,
		City:          addr.City,
		Country:       "se",
		Email:         faker.Email(),
	}
	return nil
}

// SetStuck makes later acknowledgement updates a no-op.
func (p *Provider) SetStuck(stuck bool) {
	p.mu.Lock()
	p.stuck = stuck
	p.mu.Unlock()
}

// Calls returns how often op ("create", "fetch", "update") was invoked.
func (p *Provider) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func copyTx(tx *domain.RemoteTransaction) *domain.RemoteTransaction {
	out := *tx
	out.Values = maps.Clone(tx.Values)
	if tx.BillingAddress != nil {
		addr := *tx.BillingAddress
		out.BillingAddress = &addr
	}
	return &out
}
