// Package memory is the in-process Collection adapter used by tests and the
// default "memory" store backend. Documents are kept as encoded JSON so reads
// never alias a caller's value.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"ezclaim/internal/storage"
	"ezclaim/pkg/platform/sentinel"
)

type record struct {
	raw        []byte
	doc        map[string]any
	entityType string
}

// Collection stores documents of one logical type in insertion order.
type Collection[T storage.Entity] struct {
	name string
	opts storage.Options

	mu      sync.RWMutex
	records map[string]record
	order   []string
}

// New creates an empty collection.
func New[T storage.Entity](name, entityType string, opts ...storage.Option) *Collection[T] {
	return &Collection[T]{
		name:    name,
		opts:    storage.NewOptions(entityType, opts...),
		records: make(map[string]record),
	}
}

func (c *Collection[T]) Name() string {
	return c.name
}

func (c *Collection[T]) FindByID(ctx context.Context, id string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, storage.TranslateError("find "+c.name, err)
	}
	c.mu.RLock()
	rec, ok := c.records[id]
	c.mu.RUnlock()
	if !ok {
		return zero, sentinel.ErrNotFound
	}
	return storage.Decode[T](rec.raw)
}

func (c *Collection[T]) FindAllByID(ctx context.Context, ids []string) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.TranslateError("find "+c.name, err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		rec, ok := c.records[id]
		if !ok {
			continue
		}
		entity, err := storage.Decode[T](rec.raw)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}

func (c *Collection[T]) FindAll(ctx context.Context) ([]T, error) {
	c.mu.RLock()
	ids := slices.Clone(c.order)
	c.mu.RUnlock()
	return c.FindAllByID(ctx, ids)
}

func (c *Collection[T]) Save(ctx context.Context, entity T) error {
	if err := ctx.Err(); err != nil {
		return storage.TranslateError("save "+c.name, err)
	}
	doc, raw, err := storage.Encode(c.opts.EntityType, entity)
	if err != nil {
		return err
	}
	id := entity.EntityID()

	c.mu.Lock()
	if _, exists := c.records[id]; !exists {
		c.order = append(c.order, id)
	}
	c.records[id] = record{raw: raw, doc: doc, entityType: c.opts.EntityType}
	c.mu.Unlock()

	c.opts.NotifySave(ctx, c.name, id, doc)
	return nil
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return storage.TranslateError("delete "+c.name, err)
	}
	c.mu.Lock()
	rec, ok := c.records[id]
	if !ok {
		c.mu.Unlock()
		return sentinel.ErrNotFound
	}
	delete(c.records, id)
	c.order = slices.DeleteFunc(c.order, func(v string) bool { return v == id })
	c.mu.Unlock()

	c.opts.NotifyDelete(ctx, c.name, id, rec.entityType)
	return nil
}

func (c *Collection[T]) Query(ctx context.Context, q storage.Query) (storage.Result[T], error) {
	var res storage.Result[T]
	if err := ctx.Err(); err != nil {
		return res, storage.TranslateError("query "+c.name, err)
	}
	for field := range q.Where {
		if !storage.ValidField(field) {
			return res, fmt.Errorf("query %s: invalid field %q", c.name, field)
		}
	}
	offset, ok := q.Offset()
	if !ok {
		return res, fmt.Errorf("query %s: page %d out of range", c.name, q.Page)
	}

	c.mu.RLock()
	matched := make([]record, 0, len(c.order))
	for _, id := range c.order {
		rec := c.records[id]
		if matches(rec.doc, q.Where) {
			matched = append(matched, rec)
		}
	}
	c.mu.RUnlock()

	if len(q.Sort) > 0 {
		slices.SortStableFunc(matched, func(a, b record) int {
			for _, s := range q.Sort {
				cmp := storage.CompareValues(a.doc[s.Field], b.doc[s.Field])
				if s.Desc {
					cmp = -cmp
				}
				if cmp != 0 {
					return cmp
				}
			}
			return 0
		})
	}

	res.Total = len(matched)
	if q.Size > 0 {
		start := min(offset, len(matched))
		end := min(start+q.Size, len(matched))
		matched = matched[start:end]
	}
	res.Items = make([]T, 0, len(matched))
	for _, rec := range matched {
		entity, err := storage.Decode[T](rec.raw)
		if err != nil {
			return storage.Result[T]{}, err
		}
		res.Items = append(res.Items, entity)
	}
	return res, nil
}

func matches(doc map[string]any, where map[string]string) bool {
	for field, want := range where {
		v, ok := doc[field]
		if !ok || v == nil {
			return false
		}
		if s, ok := v.(string); ok {
			if s != want {
				return false
			}
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil || string(raw) != want {
			return false
		}
	}
	return true
}
