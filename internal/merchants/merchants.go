// Package merchants provides per-merchant settings, including the typed
// antifraud rules that override platform limit defaults.
//
// Rules are validated at the write boundary (UpsertSettings) so readers —
// the antifraud guard in particular — can trust the shape without
// re-parsing defensively on every request.
package merchants

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrSettingsNotFound = errors.New("merchants: settings not found")

// ScopeOverride overrides a subset of limit fields for one scope.
// Nil fields keep the platform default. MonthlyCap, PointsCap and
// BlockDaily are only meaningful on the customer scope.
type ScopeOverride struct {
	Limit      *float64 `json:"limit,omitempty"`
	WindowSec  *float64 `json:"windowSec,omitempty"`
	DailyCap   *float64 `json:"dailyCap,omitempty"`
	WeeklyCap  *float64 `json:"weeklyCap,omitempty"`
	MonthlyCap *float64 `json:"monthlyCap,omitempty"`
	PointsCap  *float64 `json:"pointsCap,omitempty"`
	BlockDaily *bool    `json:"blockDaily,omitempty"`
}

// ResetOverrides clamp velocity window starts forward, effectively zeroing
// accumulated velocity without deleting history. All applies merchant-wide;
// the per-scope maps key by identity (outlet/device/staff/customer id).
// Written by administrative action, read-only to the guard.
type ResetOverrides struct {
	All      *time.Time           `json:"all,omitempty"`
	Outlet   map[string]time.Time `json:"outlet,omitempty"`
	Device   map[string]time.Time `json:"device,omitempty"`
	Staff    map[string]time.Time `json:"staff,omitempty"`
	Customer map[string]time.Time `json:"customer,omitempty"`
}

// AntifraudRules is the merchant-configurable antifraud policy.
type AntifraudRules struct {
	Customer *ScopeOverride `json:"customer,omitempty"`
	Outlet   *ScopeOverride `json:"outlet,omitempty"`
	Device   *ScopeOverride `json:"device,omitempty"`
	Staff    *ScopeOverride `json:"staff,omitempty"`
	Merchant *ScopeOverride `json:"merchant,omitempty"`

	// BlockFactors lists factor keys (e.g. "no_outlet_id") the merchant
	// wants flagged. Matches surface as notifications, not hard blocks.
	BlockFactors []string `json:"blockFactors,omitempty"`

	Reset *ResetOverrides `json:"reset,omitempty"`
}

// Rules is the versioned settings blob stored per merchant.
type Rules struct {
	Version int             `json:"version"`
	AF      *AntifraudRules `json:"af,omitempty"`
}

// Settings holds one merchant's configuration.
type Settings struct {
	MerchantID string    `json:"merchantId"`
	Rules      Rules     `json:"rules"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Store persists merchant settings.
type Store interface {
	GetSettings(ctx context.Context, merchantID string) (*Settings, error)
	UpsertSettings(ctx context.Context, s *Settings) error
}

// ValidateRules checks a rules blob before it is written. Velocity fields
// must be positive when present; caps must be non-negative (zero = disabled).
func ValidateRules(r *Rules) error {
	if r.AF == nil {
		return nil
	}
	scopes := map[string]*ScopeOverride{
		"customer": r.AF.Customer,
		"outlet":   r.AF.Outlet,
		"device":   r.AF.Device,
		"staff":    r.AF.Staff,
		"merchant": r.AF.Merchant,
	}
	for name, ov := range scopes {
		if ov == nil {
			continue
		}
		if err := validateOverride(name, ov); err != nil {
			return err
		}
		if name != "customer" && (ov.MonthlyCap != nil || ov.PointsCap != nil || ov.BlockDaily != nil) {
			return fmt.Errorf("af.%s: monthlyCap/pointsCap/blockDaily are customer-scope only", name)
		}
	}
	for i, f := range r.AF.BlockFactors {
		if f == "" {
			return fmt.Errorf("af.blockFactors[%d]: empty factor key", i)
		}
	}
	return nil
}

func validateOverride(name string, ov *ScopeOverride) error {
	positive := func(field string, v *float64) error {
		if v != nil && (!isFinite(*v) || *v <= 0) {
			return fmt.Errorf("af.%s.%s: must be a positive number", name, field)
		}
		return nil
	}
	nonNegative := func(field string, v *float64) error {
		if v != nil && (!isFinite(*v) || *v < 0) {
			return fmt.Errorf("af.%s.%s: must be a non-negative number", name, field)
		}
		return nil
	}
	if err := positive("limit", ov.Limit); err != nil {
		return err
	}
	if err := positive("windowSec", ov.WindowSec); err != nil {
		return err
	}
	for field, v := range map[string]*float64{
		"dailyCap":   ov.DailyCap,
		"weeklyCap":  ov.WeeklyCap,
		"monthlyCap": ov.MonthlyCap,
		"pointsCap":  ov.PointsCap,
	} {
		if err := nonNegative(field, v); err != nil {
			return err
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
