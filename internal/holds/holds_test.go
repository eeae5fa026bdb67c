package holds

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHoldAmount(t *testing.T) {
	cases := []struct {
		name string
		hold Hold
		want int64
	}{
		{"earn", Hold{Mode: ModeEarn, EarnPoints: 150}, 150},
		{"redeem", Hold{Mode: ModeRedeem, RedeemAmount: 80}, 80},
		{"redeem ignores earn points", Hold{Mode: ModeRedeem, EarnPoints: 999, RedeemAmount: 80}, 80},
		{"negative normalized", Hold{Mode: ModeEarn, EarnPoints: -40}, 40},
		{"zero", Hold{Mode: ModeEarn}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.hold.Amount(); got != tc.want {
				t.Fatalf("Amount() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	if _, err := s.Get(ctx, "hold_nope"); !errors.Is(err, ErrHoldNotFound) {
		t.Fatalf("Get missing = %v, want ErrHoldNotFound", err)
	}
	if err := s.MarkCommitted(ctx, "hold_nope", now); !errors.Is(err, ErrHoldNotFound) {
		t.Fatalf("MarkCommitted missing = %v, want ErrHoldNotFound", err)
	}

	h := &Hold{
		ID: "hold_1", MerchantID: "m_1", CustomerID: "cus_1",
		Mode: ModeEarn, EarnPoints: 100, Status: StatusPending, CreatedAt: now,
	}
	if err := s.Create(ctx, h); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.MarkCommitted(ctx, "hold_1", now.Add(time.Minute)); err != nil {
		t.Fatalf("MarkCommitted: %v", err)
	}
	got, err := s.Get(ctx, "hold_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusCommitted {
		t.Fatalf("status = %s, want committed", got.Status)
	}
	if !got.UpdatedAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("updatedAt = %v, want commit time", got.UpdatedAt)
	}

	// Second commit must refuse.
	if err := s.MarkCommitted(ctx, "hold_1", now.Add(2*time.Minute)); !errors.Is(err, ErrHoldCommitted) {
		t.Fatalf("repeat MarkCommitted = %v, want ErrHoldCommitted", err)
	}
}

func TestMemoryStoreCopiesHolds(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	h := &Hold{ID: "hold_1", MerchantID: "m_1", Status: StatusPending}
	if err := s.Create(ctx, h); err != nil {
		t.Fatalf("Create: %v", err)
	}

	h.Status = StatusCancelled // caller mutation must not leak in
	got, err := s.Get(ctx, "hold_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusPending {
		t.Fatalf("status = %s, stored copy was mutated", got.Status)
	}

	got.MerchantID = "m_other" // returned copy must not leak out
	again, _ := s.Get(ctx, "hold_1")
	if again.MerchantID != "m_1" {
		t.Fatalf("merchant = %s, returned copy aliased the store", again.MerchantID)
	}
}
