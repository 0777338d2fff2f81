// Package store holds the lockout Store adapters: in-process, Redis and
// Postgres. Adapters keep counters only; thresholds live in the service.
package store

import (
	"context"
	"sync"
	"time"

	"ezclaim/internal/claims/lockout"
)

// Memory keeps lockout records in a map. Used by tests and the memory backend.
type Memory struct {
	mu      sync.Mutex
	records map[string]lockout.Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]lockout.Record)}
}

var _ lockout.Store = (*Memory)(nil)

func (m *Memory) Get(_ context.Context, claimID string) (*lockout.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[claimID]
	if !ok {
		return nil, nil
	}
	return copyRecord(rec), nil
}

func (m *Memory) RecordFailure(_ context.Context, claimID string, now time.Time, window time.Duration) (*lockout.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[claimID]
	if !ok || rec.LastFailureAt.Before(now.Add(-window)) {
		rec.FailureCount = 0
	}
	rec.ClaimID = claimID
	rec.FailureCount++
	rec.LastFailureAt = now
	m.records[claimID] = rec
	return copyRecord(rec), nil
}

func (m *Memory) Lock(_ context.Context, claimID string, now time.Time, d time.Duration) error {
	until := now.Add(d)
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[claimID]
	rec.ClaimID = claimID
	rec.FailureCount = 0
	rec.LockedUntil = &until
	m.records[claimID] = rec
	return nil
}

func (m *Memory) Clear(_ context.Context, claimID string) error {
	m.mu.Lock()
	delete(m.records, claimID)
	m.mu.Unlock()
	return nil
}

func copyRecord(rec lockout.Record) *lockout.Record {
	if rec.LockedUntil != nil {
		until := *rec.LockedUntil
		rec.LockedUntil = &until
	}
	return &rec
}
