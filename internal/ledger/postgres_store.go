package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PostgresStore persists transactions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed transaction store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Record(ctx context.Context, tx *Transaction) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO transactions (id, merchant_id, customer_id, outlet_id, staff_id, device_id, type, amount, hold_id, refund_of, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11)`,
		tx.ID, tx.MerchantID, tx.CustomerID, tx.OutletID, tx.StaffID, tx.DeviceID,
		string(tx.Type), tx.Amount, tx.HoldID, tx.RefundOf, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

func (p *PostgresStore) Count(ctx context.Context, merchantID string, f CountFilter, since time.Time) (int, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT COUNT(*) FROM transactions WHERE merchant_id = $1 AND created_at >= $2`)
	args := []interface{}{merchantID, since}

	add := func(col, val string) {
		if val == "" {
			return
		}
		args = append(args, val)
		sb.WriteString(" AND " + col + " = $" + strconv.Itoa(len(args)))
	}
	add("customer_id", f.CustomerID)
	add("outlet_id", f.OutletID)
	add("staff_id", f.StaffID)
	add("device_id", f.DeviceID)

	var n int
	if err := p.db.QueryRowContext(ctx, sb.String(), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

func (p *PostgresStore) ListByCustomer(ctx context.Context, merchantID, customerID string, since time.Time, limit int) ([]*Transaction, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, merchant_id, COALESCE(customer_id, ''), COALESCE(outlet_id, ''),
		       COALESCE(staff_id, ''), COALESCE(device_id, ''), type, amount,
		       COALESCE(hold_id, ''), COALESCE(refund_of, ''), created_at
		FROM transactions
		WHERE merchant_id = $1 AND customer_id = $2 AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT $4`, merchantID, customerID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Transaction
	for rows.Next() {
		var t Transaction
		var typ string
		if err := rows.Scan(&t.ID, &t.MerchantID, &t.CustomerID, &t.OutletID,
			&t.StaffID, &t.DeviceID, &typ, &t.Amount, &t.HoldID, &t.RefundOf, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Type = Type(typ)
		result = append(result, &t)
	}
	return result, rows.Err()
}
