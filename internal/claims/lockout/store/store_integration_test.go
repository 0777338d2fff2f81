//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ezclaim/pkg/testutil/containers"
)

func TestPostgres(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	require.NoError(t, pg.Truncate(context.Background(), "claim_lockouts"))
	exerciseStore(t, NewPostgres(pg.DB))

	t.Run("window restarts count", func(t *testing.T) {
		store := NewPostgres(pg.DB)
		ctx := context.Background()
		now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
		_, err := store.RecordFailure(ctx, "w1", now, time.Minute)
		require.NoError(t, err)
		rec, err := store.RecordFailure(ctx, "w1", now.Add(5*time.Minute), time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 1, rec.FailureCount)
	})
}

func TestRedis(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	exerciseStore(t, NewRedis(rc.Client.Client))

	t.Run("counter expires with the window", func(t *testing.T) {
		ctx := context.Background()
		store := NewRedis(rc.Client.Client)
		_, err := store.RecordFailure(ctx, "w1", time.Now(), time.Second)
		require.NoError(t, err)
		ttl, err := rc.Client.TTL(ctx, failuresKeyPrefix+"w1").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
	})
}
