package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T, ttl time.Duration) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := NewClient(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return NewLocker(rdb, ttl), mr
}

func TestLocker_LockAndRelease(t *testing.T) {
	locker, mr := newTestLocker(t, time.Minute)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(lockPrefix+"1"))
	assert.Equal(t, time.Minute, mr.TTL(lockPrefix+"1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists(lockPrefix+"1"))
}

func TestLocker_SecondCallerWaits(t *testing.T) {
	locker, _ := newTestLocker(t, time.Minute)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "1")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, "1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Other orders are not blocked.
	unlockOther, err := locker.Lock(ctx, "2")
	require.NoError(t, err)
	require.NoError(t, unlockOther(ctx))

	acquired := make(chan error, 1)
	go func() {
		unlockNext, err := locker.Lock(ctx, "1")
		if err == nil {
			err = unlockNext(ctx)
		}
		acquired <- err
	}()

	require.NoError(t, unlock(ctx))
	select {
	case err := <-acquired:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("waiting caller never acquired the released lock")
	}
}

func TestLocker_ExpiredLockIsReportedAndNotStolenBack(t *testing.T) {
	locker, mr := newTestLocker(t, time.Second)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists(lockPrefix+"1"))

	unlockNext, err := locker.Lock(ctx, "1")
	require.NoError(t, err)

	// The first holder's release must not drop the new holder's lock.
	assert.ErrorIs(t, unlock(ctx), ErrLockLost)
	assert.True(t, mr.Exists(lockPrefix+"1"))

	require.NoError(t, unlockNext(ctx))
	assert.False(t, mr.Exists(lockPrefix+"1"))
}
