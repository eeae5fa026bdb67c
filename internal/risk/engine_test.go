package risk

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stampcard/loyalty/internal/ledger"
)

var noon = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, clock time.Time) (*Engine, *ledger.MemoryStore, *MemoryStore) {
	t.Helper()
	history := ledger.NewMemoryStore()
	store := NewMemoryStore()
	e := NewEngine(history, store).WithClock(func() time.Time { return clock })
	return e, history, store
}

func seedHistory(t *testing.T, s *ledger.MemoryStore, n int, age time.Duration, amount int64, deviceID string) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := s.Record(context.Background(), &ledger.Transaction{
			ID:         fmt.Sprintf("txn_%d_%d", age/time.Second, i),
			MerchantID: "m_1",
			CustomerID: "cus_1",
			DeviceID:   deviceID,
			Type:       ledger.TypeEarn,
			Amount:     amount,
			CreatedAt:  noon.Add(-age),
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func baseTx() *TransactionContext {
	return &TransactionContext{
		MerchantID: "m_1",
		CustomerID: "cus_1",
		Amount:     100,
		Kind:       "EARN",
		UserAgent:  "pos-client/2.1",
	}
}

func hasFactorPrefix(factors []string, prefix string) bool {
	for _, f := range factors {
		if f == prefix || len(f) > len(prefix) && f[:len(prefix)+1] == prefix+":" {
			return true
		}
	}
	return false
}

func TestQuietHistoryScoresLow(t *testing.T) {
	e, _, _ := newTestEngine(t, noon)

	a := e.CheckTransaction(context.Background(), baseTx())
	if a.Level != LevelLow {
		t.Fatalf("level = %s, want LOW (factors %v)", a.Level, a.Factors)
	}
	if a.ShouldBlock || a.ShouldReview {
		t.Fatal("quiet history must not flag block or review")
	}
}

func TestHourlyVelocityFactor(t *testing.T) {
	e, history, _ := newTestEngine(t, noon)
	seedHistory(t, history, 5, 30*time.Minute, 100, "")

	a := e.CheckTransaction(context.Background(), baseTx())
	if !hasFactorPrefix(a.Factors, "high_hourly_velocity") {
		t.Fatalf("factors = %v, want high_hourly_velocity", a.Factors)
	}
	if a.Level != LevelMedium {
		t.Fatalf("level = %s, want MEDIUM", a.Level)
	}
}

func TestBurstFactor(t *testing.T) {
	e, history, _ := newTestEngine(t, noon)
	seedHistory(t, history, 3, 2*time.Minute, 100, "")

	a := e.CheckTransaction(context.Background(), baseTx())
	if !hasFactorPrefix(a.Factors, "rapid_transactions") {
		t.Fatalf("factors = %v, want rapid_transactions", a.Factors)
	}
}

func TestLargeAmountAndMissingUserAgent(t *testing.T) {
	e, _, _ := newTestEngine(t, noon)
	tx := baseTx()
	tx.Amount = 15000
	tx.UserAgent = ""

	a := e.CheckTransaction(context.Background(), tx)
	if !hasFactorPrefix(a.Factors, "large_transaction") {
		t.Fatalf("factors = %v, want large_transaction", a.Factors)
	}
	if !hasFactorPrefix(a.Factors, "no_user_agent") {
		t.Fatalf("factors = %v, want no_user_agent", a.Factors)
	}
	if a.Score != weightLargeAmount+weightNoUserAgent {
		t.Fatalf("score = %d, want %d", a.Score, weightLargeAmount+weightNoUserAgent)
	}
}

func TestAmountDeviationFactor(t *testing.T) {
	e, history, _ := newTestEngine(t, noon)
	seedHistory(t, history, 2, 6*time.Hour, 100, "")
	tx := baseTx()
	tx.Amount = 500 // > 3x the 100 average

	a := e.CheckTransaction(context.Background(), tx)
	if !hasFactorPrefix(a.Factors, "amount_deviation") {
		t.Fatalf("factors = %v, want amount_deviation", a.Factors)
	}
}

func TestNewDeviceFactor(t *testing.T) {
	e, history, _ := newTestEngine(t, noon)
	seedHistory(t, history, 2, 6*time.Hour, 100, "dev_usual")
	tx := baseTx()
	tx.DeviceID = "dev_new"

	a := e.CheckTransaction(context.Background(), tx)
	if !hasFactorPrefix(a.Factors, "new_device") {
		t.Fatalf("factors = %v, want new_device", a.Factors)
	}

	tx.DeviceID = "dev_usual"
	a = e.CheckTransaction(context.Background(), tx)
	if hasFactorPrefix(a.Factors, "new_device") {
		t.Fatalf("factors = %v, known device must not flag", a.Factors)
	}
}

func TestUnusualHourFactor(t *testing.T) {
	threeAM := time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC)
	e, _, _ := newTestEngine(t, threeAM)

	a := e.CheckTransaction(context.Background(), baseTx())
	if !hasFactorPrefix(a.Factors, "unusual_hour") {
		t.Fatalf("factors = %v, want unusual_hour", a.Factors)
	}
}

func TestCriticalComboShouldBlock(t *testing.T) {
	e, history, _ := newTestEngine(t, noon)
	// Heavy day: burst + hourly + daily velocity, topped by a large amount.
	seedHistory(t, history, 3, 2*time.Minute, 100, "")
	seedHistory(t, history, 4, 30*time.Minute, 100, "")
	seedHistory(t, history, 13, 6*time.Hour, 100, "")
	tx := baseTx()
	tx.Amount = 20000

	a := e.CheckTransaction(context.Background(), tx)
	if a.Level != LevelCritical {
		t.Fatalf("level = %s (score %d, factors %v), want CRITICAL", a.Level, a.Score, a.Factors)
	}
	if !a.ShouldBlock {
		t.Fatal("CRITICAL verdict must set ShouldBlock")
	}
	if a.Score > 100 {
		t.Fatalf("score = %d, must be capped at 100", a.Score)
	}
}

type failingHistory struct{}

func (failingHistory) Record(context.Context, *ledger.Transaction) error { return nil }
func (failingHistory) Count(context.Context, string, ledger.CountFilter, time.Time) (int, error) {
	return 0, nil
}
func (failingHistory) ListByCustomer(context.Context, string, string, time.Time, int) ([]*ledger.Transaction, error) {
	return nil, errors.New("history unavailable")
}

func TestHistoryErrorDegradesToLow(t *testing.T) {
	e := NewEngine(failingHistory{}, NewMemoryStore()).WithClock(func() time.Time { return noon })

	a := e.CheckTransaction(context.Background(), baseTx())
	if a.Level != LevelLow {
		t.Fatalf("level = %s, want LOW", a.Level)
	}
	if len(a.Factors) != 1 || a.Factors[0] != "antifraud_check_error" {
		t.Fatalf("factors = %v, want [antifraud_check_error]", a.Factors)
	}
	if a.ShouldBlock {
		t.Fatal("degraded assessment must not block")
	}
}

func TestRecordCheckPersists(t *testing.T) {
	e, _, store := newTestEngine(t, noon)
	tx := baseTx()

	a := e.CheckTransaction(context.Background(), tx)
	if err := e.RecordCheck(context.Background(), tx, a); err != nil {
		t.Fatalf("RecordCheck: %v", err)
	}

	got, err := store.ListByCustomer(context.Background(), "m_1", "cus_1", 10)
	if err != nil {
		t.Fatalf("ListByCustomer: %v", err)
	}
	if len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("stored assessments = %v, want the recorded one", got)
	}
}

func TestLevelForScore(t *testing.T) {
	cases := []struct {
		score int
		want  Level
	}{
		{0, LevelLow},
		{29, LevelLow},
		{30, LevelMedium},
		{59, LevelMedium},
		{60, LevelHigh},
		{79, LevelHigh},
		{80, LevelCritical},
		{100, LevelCritical},
	}
	for _, tc := range cases {
		if got := LevelForScore(tc.score); got != tc.want {
			t.Errorf("LevelForScore(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}
