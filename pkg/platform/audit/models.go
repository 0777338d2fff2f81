// Package audit holds the change-capture audit model shared by the listener,
// the transports that carry events, the sink worker, and the stores that
// persist and query them.
package audit

//go:generate mockgen -source=models.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"math"
	"strings"
	"time"

	dErrors "ezclaim/pkg/domain-errors"
)

// CollectionName is the storage collection that holds audit events.
// Mutations to it are never change-captured.
const CollectionName = "audit_events"

// Action is the kind of mutation an event records.
type Action string

const (
	ActionSave   Action = "SAVE"
	ActionDelete Action = "DELETE"
)

// ParseAction accepts SAVE or DELETE in any case.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case ActionSave:
		return ActionSave, nil
	case ActionDelete:
		return ActionDelete, nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown audit action %q", s)
	}
}

// Event is an immutable record of one entity mutation. Data is the entity
// snapshot for SAVE and nil for DELETE.
type Event struct {
	ID         string         `json:"id"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Action     Action         `json:"action"`
	OccurredAt time.Time      `json:"occurredAt"`
	Data       map[string]any `json:"data"`
}

// Publisher hands an event to the asynchronous pipeline. It must not block
// on persistence; a returned error means the event was not accepted.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Store persists and queries audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	FindByID(ctx context.Context, id string) (*Event, error)
	Search(ctx context.Context, q Query) (*Page, error)
}

// SortField is a sortable audit event attribute.
type SortField string

const (
	SortOccurredAt SortField = "occurredAt"
	SortEntityType SortField = "entityType"
	SortEntityID   SortField = "entityId"
	SortAction     SortField = "action"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// ParseSort reads "field[,asc|desc]". Empty input yields occurredAt descending.
func ParseSort(s string) (SortField, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SortOccurredAt, true, nil
	}
	field, dir, _ := strings.Cut(s, ",")
	var f SortField
	switch SortField(strings.TrimSpace(field)) {
	case SortOccurredAt:
		f = SortOccurredAt
	case SortEntityType:
		f = SortEntityType
	case SortEntityID:
		f = SortEntityID
	case SortAction:
		f = SortAction
	default:
		return "", false, dErrors.Newf(dErrors.CodeValidation, "unsupported sort field %q", field)
	}
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "", "desc":
		return f, true, nil
	case "asc":
		return f, false, nil
	default:
		return "", false, dErrors.Newf(dErrors.CodeValidation, "unsupported sort direction %q", dir)
	}
}

// Query filters audit events. Empty fields match everything; From and To are inclusive.
type Query struct {
	EntityType string
	EntityID   string
	Action     Action
	From       *time.Time
	To         *time.Time
	Sort       SortField
	Desc       bool
	Page       int
	Size       int
}

// Normalize applies paging and sort defaults and rejects impossible ranges.
func (q *Query) Normalize() error {
	if q.Page < 0 {
		return dErrors.New(dErrors.CodeValidation, "page must not be negative")
	}
	if q.Size < 0 {
		return dErrors.New(dErrors.CodeValidation, "size must not be negative")
	}
	if q.Size == 0 {
		q.Size = DefaultPageSize
	}
	if q.Size > MaxPageSize {
		q.Size = MaxPageSize
	}
	if _, ok := q.Offset(); !ok {
		return dErrors.New(dErrors.CodeValidation, "page is out of range")
	}
	if q.Sort == "" {
		q.Sort = SortOccurredAt
		q.Desc = true
	}
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return dErrors.New(dErrors.CodeValidation, "from must not be after to")
	}
	return nil
}

// Offset is the number of matches skipped before the page. ok is false when
// Page is negative or Page*Size does not fit in an int.
func (q Query) Offset() (offset int, ok bool) {
	if q.Page < 0 || q.Size < 0 {
		return 0, false
	}
	if q.Size > 0 && q.Page > math.MaxInt/q.Size {
		return 0, false
	}
	return q.Page * q.Size, true
}

// Matches reports whether e satisfies every filter in q.
func (q Query) Matches(e Event) bool {
	if q.EntityType != "" && e.EntityType != q.EntityType {
		return false
	}
	if q.EntityID != "" && e.EntityID != q.EntityID {
		return false
	}
	if q.Action != "" && e.Action != q.Action {
		return false
	}
	if q.From != nil && e.OccurredAt.Before(*q.From) {
		return false
	}
	if q.To != nil && e.OccurredAt.After(*q.To) {
		return false
	}
	return true
}

// Page is one page of a Search plus the total number of matches.
type Page struct {
	Items []Event `json:"items"`
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Size  int     `json:"size"`
}
