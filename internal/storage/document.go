package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"strconv"
	"time"

	"ezclaim/pkg/platform/sentinel"
)

// Options are shared by every Collection adapter.
type Options struct {
	EntityType string
	Hook       Hook
	Redact     []string
	Timeout    time.Duration
}

// Option configures a Collection adapter.
type Option func(*Options)

// WithHook registers the change-capture hook.
func WithHook(h Hook) Option {
	return func(o *Options) {
		o.Hook = h
	}
}

// WithRedactedFields removes fields from the document handed to the hook.
// The stored document keeps them.
func WithRedactedFields(fields ...string) Option {
	return func(o *Options) {
		o.Redact = append(o.Redact, fields...)
	}
}

// WithTimeout bounds every store call.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// NewOptions applies opts over the defaults for a collection of entityType.
func NewOptions(entityType string, opts ...Option) Options {
	o := Options{EntityType: entityType}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithDeadline derives the per-call context for a store operation.
func (o Options) WithDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.Timeout)
}

// NotifySave fires the hook for a stored document.
func (o Options) NotifySave(ctx context.Context, collection, id string, doc map[string]any) {
	if o.Hook == nil {
		return
	}
	snapshot := maps.Clone(doc)
	for _, f := range o.Redact {
		delete(snapshot, f)
	}
	o.Hook.AfterSave(ctx, Mutation{
		Collection: collection,
		EntityType: o.EntityType,
		EntityID:   id,
		Document:   snapshot,
	})
}

// NotifyDelete fires the hook for a removed document whose stored type was entityType.
func (o Options) NotifyDelete(ctx context.Context, collection, id, entityType string) {
	if o.Hook == nil {
		return
	}
	o.Hook.AfterDelete(ctx, Mutation{
		Collection: collection,
		EntityType: entityType,
		EntityID:   id,
	})
}

// TranslateError maps context deadlines onto sentinel.ErrUnavailable.
func TranslateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Encode renders entity as a stored document tagged with entityType.
func Encode[T any](entityType string, entity T) (map[string]any, []byte, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal %s: %w", entityType, err)
	}
	doc := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("decode %s document: %w", entityType, err)
	}
	doc[TypeField] = entityType
	raw, err = json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal %s document: %w", entityType, err)
	}
	return doc, raw, nil
}

// Decode reads a stored document back into T. Bookkeeping keys are ignored.
func Decode[T any](raw []byte) (T, error) {
	var entity T
	if err := json.Unmarshal(raw, &entity); err != nil {
		return entity, fmt.Errorf("unmarshal document: %w", err)
	}
	return entity, nil
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,63}$`)

// ValidField reports whether name is safe to use as a query field.
func ValidField(name string) bool {
	return fieldPattern.MatchString(name)
}

// CompareValues orders two document values: timestamps chronologically,
// numbers numerically, everything else as strings. Missing values sort first.
func CompareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	if at, err := time.Parse(time.RFC3339Nano, as); err == nil {
		if bt, err := time.Parse(time.RFC3339Nano, bs); err == nil {
			return at.Compare(bt)
		}
	}
	if af, err := strconv.ParseFloat(as, 64); err == nil {
		if bf, err := strconv.ParseFloat(bs, 64); err == nil {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}
