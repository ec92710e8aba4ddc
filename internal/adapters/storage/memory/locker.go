package memory

import (
	"context"
	"sync"
)

// Locker serialises work per order within one process.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*orderLock
}

type orderLock struct {
	ch   chan struct{}
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*orderLock)}
}

// Lock blocks until the order is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, orderID string) (func(context.Context) error, error) {
	l.mu.Lock()
	lk, ok := l.locks[orderID]
	if !ok {
		lk = &orderLock{ch: make(chan struct{}, 1)}
		l.locks[orderID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(orderID, lk)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-lk.ch
			l.release(orderID, lk)
		})
		return nil
	}, nil
}

func (l *Locker) release(orderID string, lk *orderLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, orderID)
	}
}
