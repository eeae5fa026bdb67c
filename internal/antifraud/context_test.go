package antifraud

import (
	"context"
	"testing"
	"time"

	"github.com/stampcard/loyalty/internal/devices"
	"github.com/stampcard/loyalty/internal/holds"
)

func newContextFixture(t *testing.T) (*ContextResolver, *holds.MemoryStore, *devices.MemoryStore) {
	t.Helper()
	hs := holds.NewMemoryStore()
	ds := devices.NewMemoryStore()
	return NewContextResolver(hs, ds), hs, ds
}

func TestResolvePrefersHoldIdentity(t *testing.T) {
	r, hs, _ := newContextFixture(t)
	err := hs.Create(context.Background(), &holds.Hold{
		ID: "hold_1", MerchantID: "m_hold", CustomerID: "cus_hold",
		OutletID: "out_hold", Mode: holds.ModeEarn, EarnPoints: 10,
		Status: holds.StatusPending,
	})
	if err != nil {
		t.Fatalf("create hold: %v", err)
	}

	oc := r.Resolve(context.Background(), AdmitRequest{
		Operation:  OpCommit,
		HoldID:     "hold_1",
		MerchantID: "m_req",
		CustomerID: "cus_req",
		StaffID:    "stf_req",
	})

	if oc.MerchantID != "m_hold" {
		t.Errorf("merchant = %q, want hold's m_hold", oc.MerchantID)
	}
	if oc.CustomerID != "cus_hold" {
		t.Errorf("customer = %q, want hold's cus_hold", oc.CustomerID)
	}
	if oc.StaffID != "stf_req" {
		t.Errorf("staff = %q, want request fallback stf_req", oc.StaffID)
	}
	if oc.Hold == nil {
		t.Fatal("expected the resolved hold on the context")
	}
}

func TestResolveMissingHoldIsNonFatal(t *testing.T) {
	r, _, _ := newContextFixture(t)

	oc := r.Resolve(context.Background(), AdmitRequest{
		Operation:  OpCommit,
		HoldID:     "hold_missing",
		MerchantID: "m_1",
		CustomerID: "cus_1",
	})
	if oc.Hold != nil {
		t.Fatal("missing hold must not populate the context")
	}
	if oc.MerchantID != "m_1" {
		t.Errorf("merchant = %q, want request value", oc.MerchantID)
	}
}

func TestResolveDeviceByNormalizedCode(t *testing.T) {
	r, _, ds := newContextFixture(t)
	err := ds.Create(context.Background(), &devices.Device{
		ID: "dev_1", MerchantID: "m_1", Code: "AB-12 34",
		CodeNormalized: devices.NormalizeCode("AB-12 34"), CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("create device: %v", err)
	}

	oc := r.Resolve(context.Background(), AdmitRequest{
		Operation:  OpCommit,
		MerchantID: "m_1",
		DeviceID:   "ab_1234", // different formatting, same canonical code
	})
	if oc.ResolvedDeviceID != "dev_1" {
		t.Fatalf("resolved device = %q, want dev_1", oc.ResolvedDeviceID)
	}
}

func TestResolveDeviceFallsBackToLiteralID(t *testing.T) {
	r, _, ds := newContextFixture(t)
	archived := time.Now()
	seed := []*devices.Device{
		{ID: "dev_mine", MerchantID: "m_1", Code: "X", CodeNormalized: "X"},
		{ID: "dev_other", MerchantID: "m_2", Code: "Y", CodeNormalized: "Y"},
		{ID: "dev_gone", MerchantID: "m_1", Code: "Z", CodeNormalized: "Z", ArchivedAt: &archived},
	}
	for _, d := range seed {
		if err := ds.Create(context.Background(), d); err != nil {
			t.Fatalf("create device: %v", err)
		}
	}

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"own active device", "dev_mine", "dev_mine"},
		{"other merchant's device", "dev_other", ""},
		{"archived device", "dev_gone", ""},
		{"unknown value", "dev_nope", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			oc := r.Resolve(context.Background(), AdmitRequest{
				Operation:  OpCommit,
				MerchantID: "m_1",
				DeviceID:   tc.raw,
			})
			if oc.ResolvedDeviceID != tc.want {
				t.Fatalf("resolved = %q, want %q", oc.ResolvedDeviceID, tc.want)
			}
		})
	}
}

func TestMatchRiskFactor(t *testing.T) {
	cases := []struct {
		name   string
		block  []string
		scored []string
		want   string
	}{
		{"key with detail", []string{"large_transaction"}, []string{"large_transaction:12000"}, "large_transaction"},
		{"plain key", []string{"new_device"}, []string{"new_device"}, "new_device"},
		{"no match", []string{"new_device"}, []string{"large_transaction:12000"}, ""},
		{"empty config", nil, []string{"new_device"}, ""},
		{"first match wins", []string{"new_device", "no_user_agent"}, []string{"no_user_agent", "new_device"}, "no_user_agent"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := matchRiskFactor(tc.block, tc.scored); got != tc.want {
				t.Fatalf("matchRiskFactor = %q, want %q", got, tc.want)
			}
		})
	}
}
