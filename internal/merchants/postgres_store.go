package merchants

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PostgresStore persists merchant settings in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed settings store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) GetSettings(ctx context.Context, merchantID string) (*Settings, error) {
	var s Settings
	var rulesJSON []byte
	err := p.db.QueryRowContext(ctx, `
		SELECT merchant_id, rules, updated_at
		FROM merchant_settings WHERE merchant_id = $1`, merchantID).
		Scan(&s.MerchantID, &rulesJSON, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get merchant settings: %w", err)
	}
	if err := json.Unmarshal(rulesJSON, &s.Rules); err != nil {
		return nil, fmt.Errorf("failed to decode merchant rules: %w", err)
	}
	return &s, nil
}

func (p *PostgresStore) UpsertSettings(ctx context.Context, s *Settings) error {
	if err := ValidateRules(&s.Rules); err != nil {
		return err
	}
	s.UpdatedAt = time.Now()
	rulesJSON, err := json.Marshal(s.Rules)
	if err != nil {
		return fmt.Errorf("failed to encode merchant rules: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO merchant_settings (merchant_id, rules, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (merchant_id) DO UPDATE SET rules = $2, updated_at = $3`,
		s.MerchantID, rulesJSON, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert merchant settings: %w", err)
	}
	return nil
}
