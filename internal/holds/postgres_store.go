package holds

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore persists holds in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed hold store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, h *Hold) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO holds (id, merchant_id, customer_id, outlet_id, staff_id, device_id,
			mode, earn_points, redeem_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10, $11, $12)`,
		h.ID, h.MerchantID, h.CustomerID, h.OutletID, h.StaffID, h.DeviceID,
		string(h.Mode), h.EarnPoints, h.RedeemAmount, string(h.Status), h.CreatedAt, h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create hold: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Hold, error) {
	var h Hold
	var mode, status string
	err := p.db.QueryRowContext(ctx, `
		SELECT id, merchant_id, customer_id, COALESCE(outlet_id, ''), COALESCE(staff_id, ''),
		       COALESCE(device_id, ''), mode, earn_points, redeem_amount, status, created_at, updated_at
		FROM holds WHERE id = $1`, id).Scan(
		&h.ID, &h.MerchantID, &h.CustomerID, &h.OutletID, &h.StaffID,
		&h.DeviceID, &mode, &h.EarnPoints, &h.RedeemAmount, &status, &h.CreatedAt, &h.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrHoldNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hold: %w", err)
	}
	h.Mode = Mode(mode)
	h.Status = Status(status)
	return &h, nil
}

func (p *PostgresStore) MarkCommitted(ctx context.Context, id string, at time.Time) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE holds SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`,
		string(StatusCommitted), at, id, string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to commit hold: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Either missing or already committed; disambiguate for the caller.
		if _, getErr := p.Get(ctx, id); getErr != nil {
			return getErr
		}
		return ErrHoldCommitted
	}
	return nil
}
