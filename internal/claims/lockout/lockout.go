// Package lockout bounds wrong-password attempts against a protected claim.
//
// After MaxAttempts failures inside Window the claim refuses further
// password checks until Duration has passed. A correct password clears the
// counter. The store only keeps counters; every rule lives in Service.
package lockout

import (
	"context"
	"log/slog"
	"math"
	"time"

	"ezclaim/internal/platform/config"
	dErrors "ezclaim/pkg/domain-errors"
	"ezclaim/pkg/requestcontext"
)

// Record is the failure state of one claim.
type Record struct {
	ClaimID       string
	FailureCount  int
	LockedUntil   *time.Time
	LastFailureAt time.Time
}

// IsLockedAt reports whether the lock is still in force at now.
func (r *Record) IsLockedAt(now time.Time) bool {
	return r != nil && r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// Store persists lockout records. Get returns nil, nil for unknown claims.
type Store interface {
	Get(ctx context.Context, claimID string) (*Record, error)
	// RecordFailure counts one failure at now. A previous failure older than
	// window restarts the count at one.
	RecordFailure(ctx context.Context, claimID string, now time.Time, window time.Duration) (*Record, error)
	// Lock refuses checks for d from now and resets the failure count.
	Lock(ctx context.Context, claimID string, now time.Time, d time.Duration) error
	Clear(ctx context.Context, claimID string) error
}

// Service applies the lockout policy.
type Service struct {
	store  Store
	cfg    config.Lockout
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, cfg config.Lockout, opts ...Option) *Service {
	s := &Service{store: store, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check returns a CodeLocked error while the claim is locked. Store
// failures are logged and the check passes: the password itself is still
// verified by the caller.
func (s *Service) Check(ctx context.Context, claimID string) error {
	record, err := s.store.Get(ctx, claimID)
	if err != nil {
		s.logger.WarnContext(ctx, "lockout lookup failed",
			"claim_id", claimID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil
	}
	now := requestcontext.Now(ctx)
	if !record.IsLockedAt(now) {
		return nil
	}
	retry := int(math.Ceil(record.LockedUntil.Sub(now).Seconds()))
	return dErrors.Newf(dErrors.CodeLocked, "too many failed password attempts, retry in %d seconds", retry)
}

// RecordFailure counts a wrong password and locks the claim once the
// threshold is reached.
func (s *Service) RecordFailure(ctx context.Context, claimID string) {
	now := requestcontext.Now(ctx)
	record, err := s.store.RecordFailure(ctx, claimID, now, s.cfg.Window)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record password failure",
			"claim_id", claimID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return
	}
	if record.FailureCount < s.cfg.MaxAttempts {
		return
	}
	if err := s.store.Lock(ctx, claimID, now, s.cfg.Duration); err != nil {
		s.logger.WarnContext(ctx, "failed to lock claim",
			"claim_id", claimID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return
	}
	s.logger.InfoContext(ctx, "claim password locked",
		"claim_id", claimID,
		"failures", record.FailureCount,
		"locked_until", now.Add(s.cfg.Duration),
		"request_id", requestcontext.RequestID(ctx),
	)
}

// Clear forgets previous failures after a correct password.
func (s *Service) Clear(ctx context.Context, claimID string) {
	if err := s.store.Clear(ctx, claimID); err != nil {
		s.logger.WarnContext(ctx, "failed to clear password failures",
			"claim_id", claimID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}
