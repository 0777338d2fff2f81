package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ezclaim/internal/claims/lockout"
)

// exerciseStore runs the behaviour every lockout.Store adapter shares.
func exerciseStore(t *testing.T, store lockout.Store) {
	ctx := context.Background()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("unknown claim has no record", func(t *testing.T) {
		rec, err := store.Get(ctx, "fresh")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("failures accumulate", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			rec, err := store.RecordFailure(ctx, "c1", now.Add(time.Duration(i)*time.Second), time.Hour)
			require.NoError(t, err)
			assert.Equal(t, i, rec.FailureCount)
		}
		rec, err := store.Get(ctx, "c1")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, 3, rec.FailureCount)
		assert.Nil(t, rec.LockedUntil)
	})

	t.Run("lock resets the counter", func(t *testing.T) {
		require.NoError(t, store.Lock(ctx, "c1", now, 15*time.Minute))
		rec, err := store.Get(ctx, "c1")
		require.NoError(t, err)
		require.NotNil(t, rec.LockedUntil)
		assert.True(t, rec.LockedUntil.Equal(now.Add(15*time.Minute)))
		assert.Equal(t, 0, rec.FailureCount)
		assert.True(t, rec.IsLockedAt(now.Add(time.Minute)))
		assert.False(t, rec.IsLockedAt(now.Add(16*time.Minute)))
	})

	t.Run("clear forgets everything", func(t *testing.T) {
		require.NoError(t, store.Clear(ctx, "c1"))
		rec, err := store.Get(ctx, "c1")
		require.NoError(t, err)
		assert.Nil(t, rec)
		require.NoError(t, store.Clear(ctx, "never-seen"))
	})
}
