// Package postgres is the PostgreSQL Collection adapter. Every collection shares
// the documents table, keyed by (collection, id), with the entity stored as JSONB.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"ezclaim/internal/storage"
	"ezclaim/pkg/platform/sentinel"
	txcontext "ezclaim/pkg/platform/tx"
)

// Collection persists one logical type in the documents table.
type Collection[T storage.Entity] struct {
	db   *sql.DB
	name string
	opts storage.Options
}

// New creates a PostgreSQL-backed collection.
func New[T storage.Entity](db *sql.DB, name, entityType string, opts ...storage.Option) *Collection[T] {
	return &Collection[T]{
		db:   db,
		name: name,
		opts: storage.NewOptions(entityType, opts...),
	}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (c *Collection[T]) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return c.db
}

func (c *Collection[T]) Name() string {
	return c.name
}

func (c *Collection[T]) FindByID(ctx context.Context, id string) (T, error) {
	var zero T
	ctx, cancel := c.opts.WithDeadline(ctx)
	defer cancel()

	var raw []byte
	err := c.execer(ctx).QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2`,
		c.name, id,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, sentinel.ErrNotFound
		}
		return zero, storage.TranslateError("find "+c.name, err)
	}
	return storage.Decode[T](raw)
}

func (c *Collection[T]) FindAllByID(ctx context.Context, ids []string) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}
	ctx, cancel := c.opts.WithDeadline(ctx)
	defer cancel()

	rows, err := c.execer(ctx).QueryContext(ctx,
		`SELECT id, doc FROM documents WHERE collection = $1 AND id = ANY($2)`,
		c.name, pq.StringArray(ids),
	)
	if err != nil {
		return nil, storage.TranslateError("find "+c.name, err)
	}
	defer rows.Close()

	byID := make(map[string]T, len(ids))
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.name, err)
		}
		entity, err := storage.Decode[T](raw)
		if err != nil {
			return nil, err
		}
		byID[id] = entity
	}
	if err := rows.Err(); err != nil {
		return nil, storage.TranslateError("iterate "+c.name, err)
	}

	out := make([]T, 0, len(byID))
	for _, id := range ids {
		if entity, ok := byID[id]; ok {
			out = append(out, entity)
		}
	}
	return out, nil
}

func (c *Collection[T]) FindAll(ctx context.Context) ([]T, error) {
	res, err := c.Query(ctx, storage.Query{})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (c *Collection[T]) Save(ctx context.Context, entity T) error {
	doc, raw, err := storage.Encode(c.opts.EntityType, entity)
	if err != nil {
		return err
	}
	id := entity.EntityID()

	dctx, cancel := c.opts.WithDeadline(ctx)
	defer cancel()
	_, err = c.execer(dctx).ExecContext(dctx, `
		INSERT INTO documents (collection, id, entity_type, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (collection, id) DO UPDATE SET
			entity_type = EXCLUDED.entity_type,
			doc = EXCLUDED.doc,
			updated_at = NOW()
	`, c.name, id, c.opts.EntityType, raw)
	if err != nil {
		return storage.TranslateError("save "+c.name, err)
	}

	c.opts.NotifySave(ctx, c.name, id, doc)
	return nil
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	dctx, cancel := c.opts.WithDeadline(ctx)
	defer cancel()

	var entityType sql.NullString
	err := c.execer(dctx).QueryRowContext(dctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2 RETURNING doc->>'_type'`,
		c.name, id,
	).Scan(&entityType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return storage.TranslateError("delete "+c.name, err)
	}

	c.opts.NotifyDelete(ctx, c.name, id, entityType.String)
	return nil
}

func (c *Collection[T]) Query(ctx context.Context, q storage.Query) (storage.Result[T], error) {
	var res storage.Result[T]
	query, args, err := c.buildQuery(q)
	if err != nil {
		return res, err
	}

	ctx, cancel := c.opts.WithDeadline(ctx)
	defer cancel()
	rows, err := c.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return res, storage.TranslateError("query "+c.name, err)
	}
	defer rows.Close()

	res.Items = []T{}
	for rows.Next() {
		var raw []byte
		var total int
		if err := rows.Scan(&raw, &total); err != nil {
			return storage.Result[T]{}, fmt.Errorf("scan %s: %w", c.name, err)
		}
		entity, err := storage.Decode[T](raw)
		if err != nil {
			return storage.Result[T]{}, err
		}
		res.Items = append(res.Items, entity)
		res.Total = total
	}
	if err := rows.Err(); err != nil {
		return storage.Result[T]{}, storage.TranslateError("iterate "+c.name, err)
	}

	// An out-of-range page returns no rows, so the window count is unavailable.
	if len(res.Items) == 0 && q.Page > 0 {
		total, err := c.count(ctx, q)
		if err != nil {
			return storage.Result[T]{}, err
		}
		res.Total = total
	}
	return res, nil
}

func (c *Collection[T]) count(ctx context.Context, q storage.Query) (int, error) {
	where, args, err := c.whereClause(q)
	if err != nil {
		return 0, err
	}
	var total int
	err = c.execer(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE `+where, args...).Scan(&total)
	if err != nil {
		return 0, storage.TranslateError("count "+c.name, err)
	}
	return total, nil
}

func (c *Collection[T]) whereClause(q storage.Query) (string, []any, error) {
	clauses := []string{"collection = $1"}
	args := []any{c.name}
	for field, value := range q.Where {
		if !storage.ValidField(field) {
			return "", nil, fmt.Errorf("query %s: invalid field %q", c.name, field)
		}
		args = append(args, field, value)
		clauses = append(clauses, fmt.Sprintf("doc->>$%d = $%d", len(args)-1, len(args)))
	}
	return strings.Join(clauses, " AND "), args, nil
}

func (c *Collection[T]) buildQuery(q storage.Query) (string, []any, error) {
	where, args, err := c.whereClause(q)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString(`SELECT doc, COUNT(*) OVER() FROM documents WHERE `)
	b.WriteString(where)

	order := make([]string, 0, len(q.Sort)+1)
	for _, s := range q.Sort {
		if !storage.ValidField(s.Field) {
			return "", nil, fmt.Errorf("query %s: invalid sort field %q", c.name, s.Field)
		}
		dir := "ASC NULLS FIRST"
		if s.Desc {
			dir = "DESC NULLS LAST"
		}
		expr := fmt.Sprintf("doc->'%s'", s.Field)
		if s.Time {
			expr = fmt.Sprintf("(doc->>'%s')::timestamptz", s.Field)
		}
		order = append(order, expr+" "+dir)
	}
	order = append(order, "created_at ASC")
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(order, ", "))

	if q.Size > 0 {
		offset, ok := q.Offset()
		if !ok {
			return "", nil, fmt.Errorf("query %s: page %d out of range", c.name, q.Page)
		}
		args = append(args, q.Size, offset)
		fmt.Fprintf(&b, " LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	return b.String(), args, nil
}
