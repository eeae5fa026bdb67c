// Package risk implements transaction risk scoring for loyalty operations.
//
// Every commit is evaluated against weighted heuristic factors: operation
// velocity, amount deviation, time-of-day, device novelty, and client
// fingerprint. Scores range 0-100; CRITICAL verdicts set ShouldBlock and
// HIGH verdicts set ShouldReview. The admission guard decides what to do
// with the verdict — the scorer never blocks anything itself.
package risk

import (
	"context"
	"time"
)

// Level grades a transaction's risk.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// Score thresholds for risk levels.
const (
	CriticalThreshold = 80
	HighThreshold     = 60
	MediumThreshold   = 30
)

// LevelForScore maps a 0-100 score to a risk level.
func LevelForScore(score int) Level {
	switch {
	case score >= CriticalThreshold:
		return LevelCritical
	case score >= HighThreshold:
		return LevelHigh
	case score >= MediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Assessment is the result of evaluating a single transaction.
// Factor strings carry a key plus optional ":"-delimited detail,
// e.g. "high_hourly_velocity:7".
type Assessment struct {
	ID           string    `json:"id"`
	MerchantID   string    `json:"merchantId"`
	CustomerID   string    `json:"customerId"`
	Level        Level     `json:"level"`
	Score        int       `json:"score"`
	Factors      []string  `json:"factors"`
	ShouldBlock  bool      `json:"shouldBlock"`
	ShouldReview bool      `json:"shouldReview"`
	EvaluatedAt  time.Time `json:"evaluatedAt"`
}

// TransactionContext carries the data needed to score a commit.
type TransactionContext struct {
	MerchantID string
	CustomerID string
	Amount     int64  // absolute points amount
	Kind       string // "EARN" or "REDEEM"
	OutletID   string
	StaffID    string
	DeviceID   string
	IPAddress  string
	UserAgent  string
}

// Scorer evaluates transactions and records checks for audit.
type Scorer interface {
	// CheckTransaction never fails open loudly: on internal errors it
	// degrades to a LOW assessment carrying the antifraud_check_error factor.
	CheckTransaction(ctx context.Context, tx *TransactionContext) *Assessment
	// RecordCheck persists the check for history/analytics. Best-effort.
	RecordCheck(ctx context.Context, tx *TransactionContext, a *Assessment) error
}

// Store persists assessments for the audit trail.
type Store interface {
	Record(ctx context.Context, a *Assessment) error
	ListByCustomer(ctx context.Context, merchantID, customerID string, limit int) ([]*Assessment, error)
}
