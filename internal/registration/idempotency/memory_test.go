package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "podium/pkg/domain"
	"podium/pkg/platform/sentinel"
)

func TestMemoryReserveLifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	_, reserved, err := m.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, reserved)

	t.Run("held key conflicts", func(t *testing.T) {
		_, reserved, err := m.Reserve(ctx, "k1", time.Minute)
		assert.ErrorIs(t, err, sentinel.ErrConflict)
		assert.False(t, reserved)
	})

	subID := id.NewSubmissionID()
	require.NoError(t, m.Complete(ctx, "k1", subID, time.Minute))

	t.Run("completed key replays", func(t *testing.T) {
		got, reserved, err := m.Reserve(ctx, "k1", time.Minute)
		require.NoError(t, err)
		assert.False(t, reserved)
		assert.Equal(t, subID, got)
	})

	t.Run("release keeps completed keys", func(t *testing.T) {
		require.NoError(t, m.Release(ctx, "k1"))
		got, _, err := m.Reserve(ctx, "k1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, subID, got)
	})

	t.Run("expired key can be reserved again", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		_, reserved, err := m.Reserve(ctx, "k1", time.Minute)
		require.NoError(t, err)
		assert.True(t, reserved)
	})
}

func TestMemoryReleaseFreesPendingKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, reserved, err := m.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, reserved)

	require.NoError(t, m.Release(ctx, "k"))
	_, reserved, err = m.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, reserved)
}
