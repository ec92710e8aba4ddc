package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-engine/internal/core/domain"
)

func TestOrderStore_RoundTripIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewOrderStore()

	_, err := s.Get(ctx, "1")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	order := &domain.Order{ID: "1", TotalPrice: domain.MustPrice("11", "EUR"), State: domain.OrderStateDraft}
	require.NoError(t, s.Save(ctx, order))

	// Mutating the caller's copy must not leak into the store.
	order.AttachRemote("r1")

	got, err := s.Get(ctx, "1")
	require.NoError(t, err)
	_, ok := got.RemoteRef().ID()
	assert.False(t, ok)
	assert.True(t, got.TotalPrice.Equal(domain.MustPrice("11.00", "EUR")))
}

func TestPaymentStore_UniquePerOrderAndGateway(t *testing.T) {
	ctx := context.Background()
	s := NewPaymentStore()
	p := domain.Payment{ID: uuid.New(), OrderID: "1", GatewayID: "gw", State: domain.PaymentAuthorization}

	require.NoError(t, s.Create(ctx, p))
	err := s.Create(ctx, domain.Payment{ID: uuid.New(), OrderID: "1", GatewayID: "gw"})
	assert.ErrorIs(t, err, domain.ErrPaymentExists)

	// Another gateway is a different payment.
	require.NoError(t, s.Create(ctx, domain.Payment{ID: uuid.New(), OrderID: "1", GatewayID: "other"}))
	assert.Equal(t, 2, s.Count())

	p.Complete(time.Now())
	require.NoError(t, s.Save(ctx, p))
	got, err := s.FindForOrder(ctx, "1", "gw")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, got.State)

	_, err = s.FindForOrder(ctx, "2", "gw")
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestLocker_SerialisesPerOrder(t *testing.T) {
	ctx := context.Background()
	l := NewLocker()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "1")
			require.NoError(t, err)
			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			_ = unlock(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, l.locks)
}

func TestLocker_ContextCancelled(t *testing.T) {
	l := NewLocker()
	unlock, err := l.Lock(context.Background(), "1")
	require.NoError(t, err)
	defer unlock(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Other orders are unaffected.
	unlock2, err := l.Lock(context.Background(), "2")
	require.NoError(t, err)
	require.NoError(t, unlock2(context.Background()))
}
