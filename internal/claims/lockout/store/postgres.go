package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ezclaim/internal/claims/lockout"
)

// Postgres persists lockout records in the claim_lockouts table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

var _ lockout.Store = (*Postgres)(nil)

func (s *Postgres) Get(ctx context.Context, claimID string) (*lockout.Record, error) {
	query := `
		SELECT claim_id, failure_count, locked_until, last_failure_at
		FROM claim_lockouts
		WHERE claim_id = $1
	`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, claimID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lockout: %w", err)
	}
	return rec, nil
}

// RecordFailure increments atomically so concurrent wrong passwords cannot
// slip past the threshold.
func (s *Postgres) RecordFailure(ctx context.Context, claimID string, now time.Time, window time.Duration) (*lockout.Record, error) {
	query := `
		INSERT INTO claim_lockouts (claim_id, failure_count, locked_until, last_failure_at)
		VALUES ($1, 1, NULL, $2)
		ON CONFLICT (claim_id) DO UPDATE SET
			failure_count = CASE
				WHEN claim_lockouts.last_failure_at < $3 THEN 1
				ELSE claim_lockouts.failure_count + 1
			END,
			last_failure_at = $2
		RETURNING claim_id, failure_count, locked_until, last_failure_at
	`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, claimID, now, now.Add(-window)))
	if err != nil {
		return nil, fmt.Errorf("record failure: %w", err)
	}
	return rec, nil
}

func (s *Postgres) Lock(ctx context.Context, claimID string, now time.Time, d time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE claim_lockouts SET locked_until = $2, failure_count = 0 WHERE claim_id = $1`,
		claimID, now.Add(d),
	)
	if err != nil {
		return fmt.Errorf("lock claim: %w", err)
	}
	return nil
}

func (s *Postgres) Clear(ctx context.Context, claimID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM claim_lockouts WHERE claim_id = $1`, claimID)
	if err != nil {
		return fmt.Errorf("clear lockout: %w", err)
	}
	return nil
}

type lockoutRow interface {
	Scan(dest ...any) error
}

func scanRecord(row lockoutRow) (*lockout.Record, error) {
	var rec lockout.Record
	var lockedUntil sql.NullTime
	if err := row.Scan(&rec.ClaimID, &rec.FailureCount, &lockedUntil, &rec.LastFailureAt); err != nil {
		return nil, err
	}
	if lockedUntil.Valid {
		until := lockedUntil.Time.UTC()
		rec.LockedUntil = &until
	}
	return &rec, nil
}
