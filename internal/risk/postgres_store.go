package risk

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore persists risk assessments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed assessment store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Record(ctx context.Context, a *Assessment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fraud_checks (id, merchant_id, customer_id, level, score, factors, should_block, should_review, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.MerchantID, a.CustomerID, string(a.Level), a.Score,
		pq.Array(a.Factors), a.ShouldBlock, a.ShouldReview, a.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record fraud check: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByCustomer(ctx context.Context, merchantID, customerID string, limit int) ([]*Assessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, merchant_id, customer_id, level, score, factors, should_block, should_review, evaluated_at
		FROM fraud_checks
		WHERE merchant_id = $1 AND customer_id = $2
		ORDER BY evaluated_at DESC
		LIMIT $3`, merchantID, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fraud checks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Assessment
	for rows.Next() {
		var a Assessment
		var level string
		if err := rows.Scan(&a.ID, &a.MerchantID, &a.CustomerID, &level, &a.Score,
			pq.Array(&a.Factors), &a.ShouldBlock, &a.ShouldReview, &a.EvaluatedAt); err != nil {
			return nil, err
		}
		a.Level = Level(level)
		result = append(result, &a)
	}
	return result, rows.Err()
}
