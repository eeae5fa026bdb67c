package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/stampcard/loyalty/internal/antifraud"
	"github.com/stampcard/loyalty/internal/idgen"
)

// PostgresStore persists staff events in the staff_events table with the
// event body stored as JSONB.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed staff event store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Record implements Store.
func (s *PostgresStore) Record(ctx context.Context, merchantID string, e antifraud.StaffEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal staff event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO staff_events (id, merchant_id, kind, reason, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		idgen.WithPrefix("sev_"), merchantID, e.Kind, e.Reason, payload, e.At,
	)
	if err != nil {
		return fmt.Errorf("insert staff event: %w", err)
	}
	return nil
}

// ListByMerchant returns the most recent events for a merchant, newest
// first.
func (s *PostgresStore) ListByMerchant(ctx context.Context, merchantID string, limit int) ([]antifraud.StaffEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload
		FROM staff_events
		WHERE merchant_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		merchantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query staff events: %w", err)
	}
	defer rows.Close()

	var events []antifraud.StaffEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan staff event: %w", err)
		}
		var e antifraud.StaffEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode staff event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
