package devices

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists devices in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed device store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, d *Device) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO devices (id, merchant_id, outlet_id, label, code, code_normalized, archived_at, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)`,
		d.ID, d.MerchantID, d.OutletID, d.Label, d.Code, d.CodeNormalized, d.ArchivedAt, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

func (p *PostgresStore) FindActiveByCode(ctx context.Context, merchantID, normalizedCode string) (*Device, error) {
	return p.scanDevice(p.db.QueryRowContext(ctx, `
		SELECT id, merchant_id, COALESCE(outlet_id, ''), label, code, code_normalized, archived_at, created_at
		FROM devices
		WHERE merchant_id = $1 AND code_normalized = $2 AND archived_at IS NULL`,
		merchantID, normalizedCode))
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Device, error) {
	return p.scanDevice(p.db.QueryRowContext(ctx, `
		SELECT id, merchant_id, COALESCE(outlet_id, ''), label, code, code_normalized, archived_at, created_at
		FROM devices WHERE id = $1`, id))
}

func (p *PostgresStore) scanDevice(row *sql.Row) (*Device, error) {
	var d Device
	var archivedAt sql.NullTime
	err := row.Scan(&d.ID, &d.MerchantID, &d.OutletID, &d.Label, &d.Code,
		&d.CodeNormalized, &archivedAt, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan device: %w", err)
	}
	if archivedAt.Valid {
		t := archivedAt.Time
		d.ArchivedAt = &t
	}
	return &d, nil
}
