// Package storage defines the keyed document collections that hold claims,
// photos, and tags, and the change-capture hook every adapter fires after a
// successful mutation.
//
// Entities are persisted as JSON documents tagged with a logical type under
// TypeField. Adapters return sentinel.ErrNotFound for missing ids and wrap
// sentinel.ErrUnavailable when the backing store times out.
package storage

import (
	"context"
	"math"
)

// TypeField is the bookkeeping key that records an entity's logical type
// inside its stored document.
const TypeField = "_type"

// Entity is anything stored in a Collection.
type Entity interface {
	EntityID() string
}

// Mutation describes a completed write. Document is the stored document
// (redacted fields removed, TypeField still present) for saves and nil for deletes.
// EntityType is empty when a deleted document carried no type.
type Mutation struct {
	Collection string
	EntityType string
	EntityID   string
	Document   map[string]any
}

// Hook observes successful mutations. Implementations must not block or fail
// the write: they return nothing and are invoked only after the write commits.
type Hook interface {
	AfterSave(ctx context.Context, m Mutation)
	AfterDelete(ctx context.Context, m Mutation)
}

// Sort orders a query on a top-level document field. Time marks fields
// holding RFC 3339 timestamps, which must compare as instants: encoded
// fractions are trimmed, so their text does not sort chronologically.
type Sort struct {
	Field string
	Desc  bool
	Time  bool
}

// Query selects documents by top-level field equality, sorted and paged.
// Page is zero-based; Size <= 0 returns every match.
type Query struct {
	Where map[string]string
	Sort  []Sort
	Page  int
	Size  int
}

// Offset is the number of matches skipped before the page. ok is false when
// Page is negative or Page*Size does not fit in an int.
func (q Query) Offset() (offset int, ok bool) {
	if q.Page < 0 {
		return 0, false
	}
	if q.Size <= 0 {
		return 0, true
	}
	if q.Page > math.MaxInt/q.Size {
		return 0, false
	}
	return q.Page * q.Size, true
}

// Result is one page of a Query plus the total number of matches.
type Result[T any] struct {
	Items []T
	Total int
}

// Collection is a keyed set of entities of one logical type.
type Collection[T Entity] interface {
	Name() string
	FindByID(ctx context.Context, id string) (T, error)
	// FindAllByID returns the entities that exist among ids, in ids order.
	// Unknown ids are skipped.
	FindAllByID(ctx context.Context, ids []string) ([]T, error)
	FindAll(ctx context.Context) ([]T, error)
	Save(ctx context.Context, entity T) error
	Delete(ctx context.Context, id string) error
	Query(ctx context.Context, q Query) (Result[T], error)
}
