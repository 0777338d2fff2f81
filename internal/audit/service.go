// Package audit is the read side of the audit trail: filtered, sorted and
// paged access to persisted audit events.
package audit

import (
	"context"
	"errors"

	dErrors "ezclaim/pkg/domain-errors"
	audit "ezclaim/pkg/platform/audit"
	"ezclaim/pkg/platform/sentinel"
)

// Service answers audit queries from an audit store.
type Service struct {
	store audit.Store
}

// NewService creates a query service over store.
func NewService(store audit.Store) *Service {
	return &Service{store: store}
}

// Search applies paging and sort defaults and returns one page of matches.
func (s *Service) Search(ctx context.Context, q audit.Query) (*audit.Page, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	page, err := s.store.Search(ctx, q)
	if err != nil {
		return nil, translate(err, "failed to search audit events")
	}
	return page, nil
}

// GetByID returns one event or a not-found error.
func (s *Service) GetByID(ctx context.Context, id string) (*audit.Event, error) {
	event, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "audit event %s not found", id)
		}
		return nil, translate(err, "failed to load audit event")
	}
	return event, nil
}

func translate(err error, msg string) error {
	if errors.Is(err, sentinel.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "audit store unavailable")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
