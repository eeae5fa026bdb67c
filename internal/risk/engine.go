package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/stampcard/loyalty/internal/idgen"
	"github.com/stampcard/loyalty/internal/ledger"
	"github.com/stampcard/loyalty/internal/logging"
)

// Heuristic thresholds, distilled from production tuning.
const (
	maxHourlyOps           = 5
	maxDailyOps            = 20
	maxBurstOps            = 3 // within 5 minutes
	largeTransactionAmount = 10000
	unusualHourStart       = 2
	unusualHourEnd         = 5

	historyWindow = 24 * time.Hour
	historyLimit  = 200
)

// Factor weights (summed, then capped at 100).
const (
	weightHourlyVelocity = 30
	weightDailyVelocity  = 20
	weightBurst          = 25
	weightLargeAmount    = 25
	weightAmountSpike    = 15
	weightUnusualHour    = 15
	weightNewDevice      = 10
	weightNoUserAgent    = 5
)

// Engine scores transactions against the customer's recent ledger history.
type Engine struct {
	history ledger.Store
	store   Store
	now     func() time.Time
}

// NewEngine creates a risk scoring engine reading history from the ledger
// and recording assessments to the given audit store.
func NewEngine(history ledger.Store, store Store) *Engine {
	return &Engine{history: history, store: store, now: time.Now}
}

// WithClock overrides the engine's clock. Test use.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// CheckTransaction evaluates a commit and returns an assessment. Internal
// failures degrade to a LOW verdict so that infrastructure noise never
// blocks a legitimate transaction.
func (e *Engine) CheckTransaction(ctx context.Context, tx *TransactionContext) *Assessment {
	now := e.now()
	history, err := e.history.ListByCustomer(ctx, tx.MerchantID, tx.CustomerID, now.Add(-historyWindow), historyLimit)
	if err != nil {
		logging.L(ctx).Warn("risk history lookup failed", "merchant", tx.MerchantID, "error", err)
		return &Assessment{
			ID:          idgen.WithPrefix("chk_"),
			MerchantID:  tx.MerchantID,
			CustomerID:  tx.CustomerID,
			Level:       LevelLow,
			Score:       0,
			Factors:     []string{"antifraud_check_error"},
			EvaluatedAt: now,
		}
	}

	score := 0
	var factors []string
	addFactor := func(weight int, factor string) {
		score += weight
		factors = append(factors, factor)
	}

	// Velocity over the customer's recent operations.
	var hourly, burst int
	hourAgo := now.Add(-time.Hour)
	fiveMinAgo := now.Add(-5 * time.Minute)
	for _, h := range history {
		if h.CreatedAt.After(hourAgo) {
			hourly++
		}
		if h.CreatedAt.After(fiveMinAgo) {
			burst++
		}
	}
	if hourly >= maxHourlyOps {
		addFactor(weightHourlyVelocity, fmt.Sprintf("high_hourly_velocity:%d", hourly))
	}
	if len(history) >= maxDailyOps {
		addFactor(weightDailyVelocity, fmt.Sprintf("high_daily_velocity:%d", len(history)))
	}
	if burst >= maxBurstOps {
		addFactor(weightBurst, fmt.Sprintf("rapid_transactions:%d_in_5min", burst))
	}

	// Amount checks.
	if tx.Amount >= largeTransactionAmount {
		addFactor(weightLargeAmount, fmt.Sprintf("large_transaction:%d", tx.Amount))
	}
	if avg := averageAmount(history); avg > 0 && tx.Amount > 3*avg {
		addFactor(weightAmountSpike, fmt.Sprintf("amount_deviation:%dx", tx.Amount/avg))
	}

	// Unusual hour.
	if hour := now.Hour(); hour >= unusualHourStart && hour < unusualHourEnd {
		addFactor(weightUnusualHour, fmt.Sprintf("unusual_hour:%d", hour))
	}

	// Device novelty: a device this customer has never used before.
	if tx.DeviceID != "" && !deviceSeen(history, tx.DeviceID) && len(history) > 0 {
		addFactor(weightNewDevice, "new_device")
	}

	// Client fingerprint.
	if tx.UserAgent == "" {
		addFactor(weightNoUserAgent, "no_user_agent")
	}

	if score > 100 {
		score = 100
	}
	level := LevelForScore(score)

	return &Assessment{
		ID:           idgen.WithPrefix("chk_"),
		MerchantID:   tx.MerchantID,
		CustomerID:   tx.CustomerID,
		Level:        level,
		Score:        score,
		Factors:      factors,
		ShouldBlock:  level == LevelCritical,
		ShouldReview: level == LevelHigh,
		EvaluatedAt:  now,
	}
}

// RecordCheck persists the assessment for history/analytics.
func (e *Engine) RecordCheck(ctx context.Context, tx *TransactionContext, a *Assessment) error {
	if e.store == nil {
		return nil
	}
	return e.store.Record(ctx, a)
}

func averageAmount(history []*ledger.Transaction) int64 {
	if len(history) == 0 {
		return 0
	}
	var sum int64
	for _, h := range history {
		sum += h.Amount
	}
	return sum / int64(len(history))
}

func deviceSeen(history []*ledger.Transaction, deviceID string) bool {
	for _, h := range history {
		if h.DeviceID == deviceID {
			return true
		}
	}
	return false
}

// Compile-time check that Engine implements Scorer.
var _ Scorer = (*Engine)(nil)
