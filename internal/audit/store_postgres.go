package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists audit events in PostgreSQL. The table is append-only;
// nothing in the service updates or deletes rows.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return fmt.Errorf("marshal event detail: %w", err)
	}
	query := `
		INSERT INTO audit_events (id, ts, action, actor, registry, service_id, pool_id, counterparty, amount, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		string(event.Action),
		event.Actor,
		event.Registry,
		int64(event.ServiceID),
		int64(event.PoolID),
		event.Counterparty,
		int64(event.Amount),
		detail,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByActor(ctx context.Context, actor string) ([]Event, error) {
	query := `
		SELECT id, ts, action, actor, registry, service_id, pool_id, counterparty, amount, detail
		FROM audit_events
		WHERE actor = $1
		ORDER BY ts ASC
	`
	rows, err := s.db.QueryContext(ctx, query, actor)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, ts, action, actor, registry, service_id, pool_id, counterparty, amount, detail
		FROM audit_events
		ORDER BY ts DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent audit events: %w", err)
	}
	defer rows.Close()
	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	// Reverse to append order.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e Event
		var action string
		var serviceID, poolID, amount int64
		var detail []byte
		if err := rows.Scan(&e.ID, &e.Timestamp, &action, &e.Actor, &e.Registry, &serviceID, &poolID, &e.Counterparty, &amount, &detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = Action(action)
		e.ServiceID = uint64(serviceID)
		e.PoolID = uint64(poolID)
		e.Amount = uint64(amount)
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("unmarshal event detail: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
