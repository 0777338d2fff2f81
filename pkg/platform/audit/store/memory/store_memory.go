package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	audit "ezclaim/pkg/platform/audit"
	"ezclaim/pkg/platform/sentinel"
)

// InMemoryStore keeps audit events in append order. Appending an id that
// already exists is a no-op, matching the Postgres store.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
	byID   map[string]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[string]int)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.byID = make(map[string]int)
}

func (s *InMemoryStore) Append(ctx context.Context, event audit.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[event.ID]; exists {
		return nil
	}
	event.Data = maps.Clone(event.Data)
	s.byID[event.ID] = len(s.events)
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	event := s.events[idx]
	return &event, nil
}

// Search filters, sorts, and pages the stored events. q must be normalized.
func (s *InMemoryStore) Search(_ context.Context, q audit.Query) (*audit.Page, error) {
	offset, ok := q.Offset()
	if !ok {
		return nil, fmt.Errorf("search audit events: page %d out of range", q.Page)
	}
	s.mu.RLock()
	matched := make([]audit.Event, 0, len(s.events))
	for _, e := range s.events {
		if q.Matches(e) {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b audit.Event) int {
		cmp := compare(q.Sort, a, b)
		if q.Desc {
			cmp = -cmp
		}
		return cmp
	})

	page := &audit.Page{Total: len(matched), Page: q.Page, Size: q.Size}
	start := min(offset, len(matched))
	end := min(start+q.Size, len(matched))
	page.Items = matched[start:end]
	return page, nil
}

func compare(field audit.SortField, a, b audit.Event) int {
	switch field {
	case audit.SortEntityType:
		return strings.Compare(a.EntityType, b.EntityType)
	case audit.SortEntityID:
		return strings.Compare(a.EntityID, b.EntityID)
	case audit.SortAction:
		return strings.Compare(string(a.Action), string(b.Action))
	default:
		return a.OccurredAt.Compare(b.OccurredAt)
	}
}
