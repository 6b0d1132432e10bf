package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "podium/pkg/domain-errors"
)

func TestShardedTxRejectsCancelledContext(t *testing.T) {
	tx := newShardedTx(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := tx.RunInTx(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	assert.False(t, called)
}

func TestShardedTxAppliesDefaultDeadline(t *testing.T) {
	tx := newShardedTx(0)
	err := tx.RunInTx(context.Background(), func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(DefaultTxTimeout), deadline, time.Second)
		return nil
	})
	require.NoError(t, err)
}

func TestShardedTxSerialisesSameKey(t *testing.T) {
	tx := newShardedTx(time.Second)
	ctx := WithLockKey(context.Background(), "event-1")

	var mu sync.Mutex
	inside, maxInside := 0, 0
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tx.RunInTx(ctx, func(context.Context) error {
				mu.Lock()
				inside++
				maxInside = max(maxInside, inside)
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside)
}

func TestHashLockKeyIsStable(t *testing.T) {
	assert.Equal(t, hashLockKey("abc"), hashLockKey("abc"))
	assert.NotEqual(t, hashLockKey("abc"), hashLockKey("abd"))
}
