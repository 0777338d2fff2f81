package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	audit "ezclaim/pkg/platform/audit"
	"ezclaim/pkg/platform/sentinel"
)

// Store implements audit.Store on the audit_events table. It has no
// change-capture hook, so writing audit events never produces more events.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var sortColumns = map[audit.SortField]string{
	audit.SortOccurredAt: "occurred_at",
	audit.SortEntityType: "entity_type",
	audit.SortEntityID:   "entity_id",
	audit.SortAction:     "action",
}

// Append inserts an event. Idempotent via ON CONFLICT DO NOTHING so a
// redelivered transport record is stored once.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	var data []byte
	if event.Data != nil {
		var err error
		data, err = json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("marshal audit data: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, entity_type, entity_id, action, occurred_at, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`,
		event.ID,
		event.EntityType,
		event.EntityID,
		string(event.Action),
		event.OccurredAt,
		data,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// FindByID returns one event or sentinel.ErrNotFound.
func (s *Store) FindByID(ctx context.Context, id string) (*audit.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id::text, entity_type, entity_id, action, occurred_at, data
		FROM audit_events
		WHERE id::text = $1
	`, id)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get audit event: %w", err)
	}
	return event, nil
}

// Search filters, sorts, and pages audit events. q must be normalized.
func (s *Store) Search(ctx context.Context, q audit.Query) (*audit.Page, error) {
	offset, ok := q.Offset()
	if !ok {
		return nil, fmt.Errorf("search audit events: page %d out of range", q.Page)
	}
	where, args := whereClause(q)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count audit events: %w", err)
	}

	column, ok := sortColumns[q.Sort]
	if !ok {
		column = "occurred_at"
	}
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	args = append(args, q.Size, offset)
	query := fmt.Sprintf(`
		SELECT id::text, entity_type, entity_id, action, occurred_at, data
		FROM audit_events%s
		ORDER BY %s %s, id %s
		LIMIT $%d OFFSET $%d
	`, where, column, dir, dir, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	page := &audit.Page{Items: []audit.Event{}, Total: total, Page: q.Page, Size: q.Size}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		page.Items = append(page.Items, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return page, nil
}

func whereClause(q audit.Query) (string, []any) {
	var clauses []string
	var args []any
	add := func(expr string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(expr, len(args)))
	}
	if q.EntityType != "" {
		add("entity_type = $%d", q.EntityType)
	}
	if q.EntityID != "" {
		add("entity_id = $%d", q.EntityID)
	}
	if q.Action != "" {
		add("action = $%d", string(q.Action))
	}
	if q.From != nil {
		add("occurred_at >= $%d", *q.From)
	}
	if q.To != nil {
		add("occurred_at <= $%d", *q.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*audit.Event, error) {
	var (
		event  audit.Event
		action string
		data   []byte
	)
	if err := row.Scan(&event.ID, &event.EntityType, &event.EntityID, &action, &event.OccurredAt, &data); err != nil {
		return nil, err
	}
	event.Action = audit.Action(action)
	event.OccurredAt = event.OccurredAt.UTC()
	if len(data) > 0 {
		if err := json.Unmarshal(data, &event.Data); err != nil {
			return nil, fmt.Errorf("unmarshal audit data: %w", err)
		}
	}
	return &event, nil
}
