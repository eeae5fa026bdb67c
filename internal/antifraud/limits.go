package antifraud

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stampcard/loyalty/internal/logging"
	"github.com/stampcard/loyalty/internal/merchants"
)

// PlatformDefaults is the immutable platform-wide limit configuration,
// constructed once at process start and injected into the guard. The
// customer defaults double as the platform abuse floor that merchant
// settings cannot lower out of existence.
type PlatformDefaults struct {
	Limits
}

// LoadPlatformDefaults reads AF_* environment variables, falling back to
// hardcoded defaults for absent, invalid or non-positive values.
func LoadPlatformDefaults() PlatformDefaults {
	return PlatformDefaults{Limits{
		Customer: ScopeLimit{
			Limit:      envNum("AF_LIMIT_CUSTOMER", 5),
			WindowSec:  envNum("AF_WINDOW_CUSTOMER_SEC", 120),
			DailyCap:   envNum("AF_DAILY_CAP_CUSTOMER", 5),
			WeeklyCap:  envNum("AF_WEEKLY_CAP_CUSTOMER", 0),
			MonthlyCap: envNum("AF_MONTHLY_CAP_CUSTOMER", 40),
			PointsCap:  int64(envNum("AF_POINTS_CAP_CUSTOMER", 3000)),
			BlockDaily: envBool("AF_BLOCK_DAILY_CUSTOMER", false),
		},
		Outlet: ScopeLimit{
			Limit:     envNum("AF_LIMIT_OUTLET", 20),
			WindowSec: envNum("AF_WINDOW_OUTLET_SEC", 600),
			DailyCap:  envNum("AF_DAILY_CAP_OUTLET", 0),
			WeeklyCap: envNum("AF_WEEKLY_CAP_OUTLET", 0),
		},
		Device: ScopeLimit{
			Limit:     envNum("AF_LIMIT_DEVICE", 20),
			WindowSec: envNum("AF_WINDOW_DEVICE_SEC", 600),
			DailyCap:  envNum("AF_DAILY_CAP_DEVICE", 0),
			WeeklyCap: envNum("AF_WEEKLY_CAP_DEVICE", 0),
		},
		Staff: ScopeLimit{
			Limit:     envNum("AF_LIMIT_STAFF", 60),
			WindowSec: envNum("AF_WINDOW_STAFF_SEC", 600),
			DailyCap:  envNum("AF_DAILY_CAP_STAFF", 0),
			WeeklyCap: envNum("AF_WEEKLY_CAP_STAFF", 0),
		},
		Merchant: ScopeLimit{
			Limit:     envNum("AF_LIMIT_MERCHANT", 200),
			WindowSec: envNum("AF_WINDOW_MERCHANT_SEC", 3600),
			DailyCap:  envNum("AF_DAILY_CAP_MERCHANT", 0),
			WeeklyCap: envNum("AF_WEEKLY_CAP_MERCHANT", 0),
		},
	}}
}

func envNum(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envBool(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

// LimitsResolver merges platform defaults with per-merchant overrides.
type LimitsResolver struct {
	defaults PlatformDefaults
	settings SettingsStore
}

// NewLimitsResolver creates a resolver over the given settings store.
func NewLimitsResolver(defaults PlatformDefaults, settings SettingsStore) *LimitsResolver {
	return &LimitsResolver{defaults: defaults, settings: settings}
}

// Defaults returns the injected platform defaults.
func (r *LimitsResolver) Defaults() Limits {
	return r.defaults.Limits
}

// Resolve returns the effective limits for a merchant plus the raw
// antifraud rules (block factors, reset overrides). Any error reading
// settings falls back to platform defaults: configuration must never
// fail the request.
func (r *LimitsResolver) Resolve(ctx context.Context, merchantID string) (Limits, *merchants.AntifraudRules) {
	limits := r.defaults.Limits
	if r.settings == nil || merchantID == "" {
		return limits, nil
	}

	s, err := r.settings.GetSettings(ctx, merchantID)
	if err != nil {
		if err != merchants.ErrSettingsNotFound {
			logging.L(ctx).Warn("merchant settings lookup failed, using defaults",
				"merchant", merchantID, "error", err)
		}
		return limits, nil
	}
	af := s.Rules.AF
	if af == nil {
		return limits, nil
	}

	applyOverride(&limits.Customer, af.Customer)
	applyOverride(&limits.Outlet, af.Outlet)
	applyOverride(&limits.Device, af.Device)
	applyOverride(&limits.Staff, af.Staff)
	applyOverride(&limits.Merchant, af.Merchant)
	return limits, af
}

// applyOverride replaces only the fields the override defines.
func applyOverride(dst *ScopeLimit, ov *merchants.ScopeOverride) {
	if ov == nil {
		return
	}
	if ov.Limit != nil {
		dst.Limit = int(*ov.Limit)
	}
	if ov.WindowSec != nil {
		dst.WindowSec = int(*ov.WindowSec)
	}
	if ov.DailyCap != nil {
		dst.DailyCap = int(*ov.DailyCap)
	}
	if ov.WeeklyCap != nil {
		dst.WeeklyCap = int(*ov.WeeklyCap)
	}
	if ov.MonthlyCap != nil {
		dst.MonthlyCap = int(*ov.MonthlyCap)
	}
	if ov.PointsCap != nil {
		dst.PointsCap = int64(*ov.PointsCap)
	}
	if ov.BlockDaily != nil {
		dst.BlockDaily = *ov.BlockDaily
	}
}

// resetOverrideFor returns the administrative reset timestamp applicable to
// a scope/identity, or the zero time. The merchant-wide override applies to
// every scope; per-identity overrides win when later.
func resetOverrideFor(af *merchants.AntifraudRules, scope Scope, identity string) time.Time {
	if af == nil || af.Reset == nil {
		return time.Time{}
	}
	rst := af.Reset
	var t time.Time
	if rst.All != nil {
		t = *rst.All
	}
	var scoped map[string]time.Time
	switch scope {
	case ScopeOutlet:
		scoped = rst.Outlet
	case ScopeDevice:
		scoped = rst.Device
	case ScopeStaff:
		scoped = rst.Staff
	case ScopeCustomer:
		scoped = rst.Customer
	}
	if ts, ok := scoped[identity]; ok && ts.After(t) {
		t = ts
	}
	return t
}
