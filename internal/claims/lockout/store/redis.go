package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ezclaim/internal/claims/lockout"
)

const (
	failuresKeyPrefix = "ezclaim:lockout:failures:"
	lockedKeyPrefix   = "ezclaim:lockout:locked:"
)

// Redis shares lockout state between instances. The failure counter is a
// fixed window: it expires window after the first failure it counts.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

var _ lockout.Store = (*Redis)(nil)

func (r *Redis) Get(ctx context.Context, claimID string) (*lockout.Record, error) {
	vals, err := r.client.MGet(ctx, failuresKeyPrefix+claimID, lockedKeyPrefix+claimID).Result()
	if err != nil {
		return nil, fmt.Errorf("get lockout: %w", err)
	}
	if vals[0] == nil && vals[1] == nil {
		return nil, nil
	}
	rec := &lockout.Record{ClaimID: claimID}
	if s, ok := vals[0].(string); ok {
		if rec.FailureCount, err = strconv.Atoi(s); err != nil {
			return nil, fmt.Errorf("decode failure count: %w", err)
		}
	}
	if s, ok := vals[1].(string); ok {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode lock expiry: %w", err)
		}
		until := time.UnixMilli(ms).UTC()
		rec.LockedUntil = &until
	}
	return rec, nil
}

func (r *Redis) RecordFailure(ctx context.Context, claimID string, now time.Time, window time.Duration) (*lockout.Record, error) {
	key := failuresKeyPrefix + claimID
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record failure: %w", err)
	}
	return &lockout.Record{
		ClaimID:       claimID,
		FailureCount:  int(incr.Val()),
		LastFailureAt: now,
	}, nil
}

func (r *Redis) Lock(ctx context.Context, claimID string, now time.Time, d time.Duration) error {
	until := now.Add(d)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, lockedKeyPrefix+claimID, strconv.FormatInt(until.UnixMilli(), 10), d)
		pipe.Del(ctx, failuresKeyPrefix+claimID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("lock claim: %w", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context, claimID string) error {
	err := r.client.Del(ctx, failuresKeyPrefix+claimID, lockedKeyPrefix+claimID).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("clear lockout: %w", err)
	}
	return nil
}
