package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryWindowRestartsCount(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	_, err := store.RecordFailure(ctx, "c1", now, time.Minute)
	require.NoError(t, err)
	rec, err := store.RecordFailure(ctx, "c1", now.Add(30*time.Second), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.FailureCount)

	rec, err = store.RecordFailure(ctx, "c1", now.Add(5*time.Minute), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.FailureCount)
}

func TestMemoryReturnsCopies(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Lock(ctx, "c1", now, time.Minute))

	rec, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	*rec.LockedUntil = now.Add(time.Hour)

	again, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), *again.LockedUntil)
}
