package antifraud

import (
	"context"
	"testing"
	"time"

	"github.com/stampcard/loyalty/internal/merchants"
)

func TestLoadPlatformDefaultsFromEnv(t *testing.T) {
	t.Setenv("AF_LIMIT_CUSTOMER", "7")
	t.Setenv("AF_WINDOW_CUSTOMER_SEC", "300")
	t.Setenv("AF_BLOCK_DAILY_CUSTOMER", "yes")
	t.Setenv("AF_LIMIT_OUTLET", "not-a-number") // falls back
	t.Setenv("AF_DAILY_CAP_CUSTOMER", "-3")     // non-positive falls back

	d := LoadPlatformDefaults()
	if d.Customer.Limit != 7 {
		t.Errorf("customer limit = %d, want 7", d.Customer.Limit)
	}
	if d.Customer.WindowSec != 300 {
		t.Errorf("customer window = %d, want 300", d.Customer.WindowSec)
	}
	if !d.Customer.BlockDaily {
		t.Error("blockDaily = false, want true")
	}
	if d.Outlet.Limit != 20 {
		t.Errorf("outlet limit = %d, want default 20", d.Outlet.Limit)
	}
	if d.Customer.DailyCap != 5 {
		t.Errorf("customer daily cap = %d, want default 5", d.Customer.DailyCap)
	}
}

func TestEnvBool(t *testing.T) {
	cases := []struct {
		value string
		def   bool
		want  bool
	}{
		{"1", false, true},
		{"true", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"0", true, false},
		{"false", true, false},
		{"no", true, false},
		{"off", true, false},
		{"", true, true},
		{"maybe", false, false},
	}
	for _, tc := range cases {
		t.Setenv("AF_TEST_BOOL", tc.value)
		if got := envBool("AF_TEST_BOOL", tc.def); got != tc.want {
			t.Errorf("envBool(%q, %v) = %v, want %v", tc.value, tc.def, got, tc.want)
		}
	}
}

func TestResolveMergesOverrides(t *testing.T) {
	store := merchants.NewMemoryStore()
	err := store.UpsertSettings(context.Background(), &merchants.Settings{
		MerchantID: "m_1",
		Rules: merchants.Rules{
			Version: 1,
			AF: &merchants.AntifraudRules{
				Customer: &merchants.ScopeOverride{
					Limit:     fptr(3),
					DailyCap:  fptr(10),
					PointsCap: fptr(500),
				},
				Staff: &merchants.ScopeOverride{Limit: fptr(30)},
			},
		},
	})
	if err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	r := NewLimitsResolver(testDefaults(), store)
	limits, af := r.Resolve(context.Background(), "m_1")

	if limits.Customer.Limit != 3 {
		t.Errorf("customer limit = %d, want 3", limits.Customer.Limit)
	}
	if limits.Customer.WindowSec != 120 {
		t.Errorf("customer window = %d, want inherited 120", limits.Customer.WindowSec)
	}
	if limits.Customer.DailyCap != 10 {
		t.Errorf("customer daily cap = %d, want 10", limits.Customer.DailyCap)
	}
	if limits.Customer.PointsCap != 500 {
		t.Errorf("customer points cap = %d, want 500", limits.Customer.PointsCap)
	}
	if limits.Staff.Limit != 30 {
		t.Errorf("staff limit = %d, want 30", limits.Staff.Limit)
	}
	if limits.Outlet != testDefaults().Outlet {
		t.Errorf("outlet limits changed without an override: %+v", limits.Outlet)
	}
	if af == nil {
		t.Fatal("expected the raw rules back")
	}

	// Resolution must be idempotent: same inputs, same result.
	again, _ := r.Resolve(context.Background(), "m_1")
	if again != limits {
		t.Errorf("second resolve differs: %+v vs %+v", again, limits)
	}
}

func TestResolveFailsOpenToDefaults(t *testing.T) {
	r := NewLimitsResolver(testDefaults(), merchants.NewMemoryStore())
	limits, af := r.Resolve(context.Background(), "m_unknown")
	if limits != testDefaults().Limits {
		t.Errorf("limits = %+v, want platform defaults", limits)
	}
	if af != nil {
		t.Errorf("rules = %+v, want nil", af)
	}
}

func TestResetOverrideFor(t *testing.T) {
	all := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	scoped := all.Add(48 * time.Hour)
	af := &merchants.AntifraudRules{
		Reset: &merchants.ResetOverrides{
			All:      &all,
			Customer: map[string]time.Time{"cus_1": scoped},
			Device:   map[string]time.Time{"dev_1": all.Add(-time.Hour)},
		},
	}

	cases := []struct {
		name     string
		scope    Scope
		identity string
		want     time.Time
	}{
		{"merchant wide", ScopeMerchant, "", all},
		{"scoped later wins", ScopeCustomer, "cus_1", scoped},
		{"scoped earlier loses to all", ScopeDevice, "dev_1", all},
		{"unknown identity uses all", ScopeCustomer, "cus_other", all},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := resetOverrideFor(af, tc.scope, tc.identity); !got.Equal(tc.want) {
				t.Fatalf("resetOverrideFor = %v, want %v", got, tc.want)
			}
		})
	}

	if got := resetOverrideFor(nil, ScopeCustomer, "cus_1"); !got.IsZero() {
		t.Fatalf("nil rules should yield zero time, got %v", got)
	}
}
