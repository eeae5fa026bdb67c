package antifraud

import (
	"context"
	"time"

	"github.com/stampcard/loyalty/internal/holds"
	"github.com/stampcard/loyalty/internal/ledger"
	"github.com/stampcard/loyalty/internal/logging"
	"github.com/stampcard/loyalty/internal/merchants"
	"github.com/stampcard/loyalty/internal/metrics"
	"github.com/stampcard/loyalty/internal/risk"
	"github.com/stampcard/loyalty/internal/traces"
)

// Rolling cap windows. Rolling rather than calendar-aligned to avoid
// timezone and midnight edge cases.
const (
	dayWindow   = 24 * time.Hour
	weekWindow  = 7 * 24 * time.Hour
	monthWindow = 30 * 24 * time.Hour
)

// Guard is the admission-control decision engine.
//
// Guard holds no per-request state and no locks: it is safe to invoke
// concurrently for any mix of merchants and customers. Counts are read
// fresh from the counter on every call; two concurrent requests near a
// limit boundary may both be admitted. That margin race is accepted in
// exchange for latency and simplicity.
type Guard struct {
	limits   *LimitsResolver
	resolver *ContextResolver
	counter  Counter
	scorer   Scorer
	alerts   AdminAlerter
	staff    StaffNotifier
	now      func() time.Time
}

// NewGuard wires the decision engine to its collaborators. scorer, alerts
// and staff may be nil; the corresponding side effects are skipped.
func NewGuard(limits *LimitsResolver, resolver *ContextResolver, counter Counter,
	scorer Scorer, alerts AdminAlerter, staff StaffNotifier) *Guard {
	return &Guard{
		limits:   limits,
		resolver: resolver,
		counter:  counter,
		scorer:   scorer,
		alerts:   alerts,
		staff:    staff,
		now:      time.Now,
	}
}

// WithClock overrides the guard's clock. Test use.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// Admit decides whether a commit/refund operation may proceed. It returns
// (true, nil) to allow, or (false, *BlockError) when a scope limit hard
// blocks. No other error is ever returned: collaborator failures degrade
// to allowing the operation.
func (g *Guard) Admit(ctx context.Context, req AdmitRequest) (bool, error) {
	ctx, span := traces.StartSpan(ctx, "antifraud.admit",
		traces.MerchantID(req.MerchantID), traces.Operation(string(req.Operation)))
	defer span.End()

	oc := g.resolver.Resolve(ctx, req)
	if oc.MerchantID == "" {
		// Cannot decide without a merchant identity: fail open.
		return true, nil
	}

	limits, rules := g.limits.Resolve(ctx, oc.MerchantID)
	now := g.now()

	if err := g.evaluateScopes(ctx, oc, limits, rules, now); err != nil {
		return false, err
	}

	// Deep checks surface notify-only events; they never hard block.
	g.deepCheck(ctx, oc, limits, rules)

	return true, nil
}

// scopeCheck is one entry of the ordered evaluation plan.
type scopeCheck struct {
	scope    Scope
	limit    ScopeLimit
	filter   ledger.CountFilter
	identity string
	active   bool
}

// evaluateScopes runs the fixed-precedence velocity and cap checks,
// stopping at the first hard block. Customer scope runs last and has its
// own platform-vs-merchant precedence rules.
func (g *Guard) evaluateScopes(ctx context.Context, oc *OperationContext, limits Limits,
	rules *merchants.AntifraudRules, now time.Time) error {

	plan := []scopeCheck{
		{ScopeMerchant, limits.Merchant, ledger.CountFilter{}, "", true},
		{ScopeOutlet, limits.Outlet, ledger.CountFilter{OutletID: oc.OutletID}, oc.OutletID, oc.OutletID != ""},
		{ScopeDevice, limits.Device, ledger.CountFilter{DeviceID: oc.ResolvedDeviceID}, oc.ResolvedDeviceID, oc.ResolvedDeviceID != ""},
		{ScopeStaff, limits.Staff, ledger.CountFilter{StaffID: oc.StaffID}, oc.StaffID, oc.StaffID != ""},
	}
	for _, c := range plan {
		if !c.active {
			continue
		}
		if err := g.checkScope(ctx, oc, rules, c, now); err != nil {
			return err
		}
	}

	// Customer scope only applies to commits; refunds may have no customer.
	if oc.Operation == OpCommit && oc.CustomerID != "" {
		return g.checkCustomer(ctx, oc, limits.Customer, rules, now)
	}
	return nil
}

// checkScope evaluates the velocity window plus daily/weekly caps for one
// non-customer scope.
func (g *Guard) checkScope(ctx context.Context, oc *OperationContext,
	rules *merchants.AntifraudRules, c scopeCheck, now time.Time) error {

	count, ok := g.count(ctx, oc, rules, c.scope, c.identity, c.filter,
		now, time.Duration(c.limit.WindowSec)*time.Second)
	if ok && count >= c.limit.Limit {
		return g.block(ctx, oc, string(c.scope), count, c.limit.Limit)
	}

	if c.limit.DailyCap > 0 {
		daily, ok := g.count(ctx, oc, rules, c.scope, c.identity, c.filter, now, dayWindow)
		if ok && daily >= c.limit.DailyCap {
			return g.block(ctx, oc, string(c.scope)+"_daily", daily, c.limit.DailyCap)
		}
	}
	if c.limit.WeeklyCap > 0 {
		weekly, ok := g.count(ctx, oc, rules, c.scope, c.identity, c.filter, now, weekWindow)
		if ok && weekly >= c.limit.WeeklyCap {
			return g.block(ctx, oc, string(c.scope)+"_weekly", weekly, c.limit.WeeklyCap)
		}
	}
	return nil
}

// checkCustomer enforces the customer scope, where platform limits and
// merchant-configured limits compete:
//
//   - the platform velocity/daily/weekly limits are the abuse floor and
//     always hard block;
//   - merchant limits may add a stricter policy on top, hard-blocking only
//     when blockDaily is set and notifying otherwise;
//   - a merchant cap of 0 means disabled, never "block everything";
//   - merchant checks equal to the platform pair/value are skipped to
//     avoid duplicate evaluation;
//   - the merchant monthly cap is always notify-only.
func (g *Guard) checkCustomer(ctx context.Context, oc *OperationContext,
	merch ScopeLimit, rules *merchants.AntifraudRules, now time.Time) error {

	platform := g.limits.Defaults().Customer
	filter := ledger.CountFilter{CustomerID: oc.CustomerID}
	scope := ScopeCustomer
	id := oc.CustomerID

	// Velocity: platform first, then the merchant pair when it differs.
	count, ok := g.count(ctx, oc, rules, scope, id, filter,
		now, time.Duration(platform.WindowSec)*time.Second)
	if ok && count >= platform.Limit {
		return g.block(ctx, oc, "customer", count, platform.Limit)
	}
	if merch.Limit != platform.Limit || merch.WindowSec != platform.WindowSec {
		count, ok = g.count(ctx, oc, rules, scope, id, filter,
			now, time.Duration(merch.WindowSec)*time.Second)
		if ok && count >= merch.Limit {
			return g.block(ctx, oc, "customer", count, merch.Limit)
		}
	}

	// Daily caps: platform floor hard blocks; merchant cap is a stricter
	// overlay that blocks or notifies per blockDaily.
	if platform.DailyCap > 0 || merch.DailyCap > 0 {
		daily, ok := g.count(ctx, oc, rules, scope, id, filter, now, dayWindow)
		if ok {
			if platform.DailyCap > 0 && daily >= platform.DailyCap {
				return g.block(ctx, oc, "customer_daily", daily, platform.DailyCap)
			}
			if merch.DailyCap > 0 && daily >= merch.DailyCap {
				if merch.BlockDaily {
					return g.block(ctx, oc, "customer_daily", daily, merch.DailyCap)
				}
				g.notifyBreach(ctx, oc, "customer_daily", daily, merch.DailyCap)
			}
		}
	}

	// Weekly caps, same precedence and hard/notify split as daily.
	merchWeekly := merch.WeeklyCap > 0 && merch.WeeklyCap != platform.WeeklyCap
	if platform.WeeklyCap > 0 || merchWeekly {
		weekly, ok := g.count(ctx, oc, rules, scope, id, filter, now, weekWindow)
		if ok {
			if platform.WeeklyCap > 0 && weekly >= platform.WeeklyCap {
				return g.block(ctx, oc, "customer_weekly", weekly, platform.WeeklyCap)
			}
			if merchWeekly && weekly >= merch.WeeklyCap {
				if merch.BlockDaily {
					return g.block(ctx, oc, "customer_weekly", weekly, merch.WeeklyCap)
				}
				g.notifyBreach(ctx, oc, "customer_weekly", weekly, merch.WeeklyCap)
			}
		}
	}

	// Monthly cap never hard blocks.
	if merch.MonthlyCap > 0 {
		monthly, ok := g.count(ctx, oc, rules, scope, id, filter, now, monthWindow)
		if ok && monthly >= merch.MonthlyCap {
			g.notifyBreach(ctx, oc, "customer_monthly", monthly, merch.MonthlyCap)
		}
	}
	return nil
}

// count queries the counting collaborator over a reset-clamped window.
// Failures are swallowed fail-open: the check is skipped, never blocking
// a legitimate operation on infrastructure noise.
func (g *Guard) count(ctx context.Context, oc *OperationContext, rules *merchants.AntifraudRules,
	scope Scope, identity string, filter ledger.CountFilter, now time.Time, window time.Duration) (int, bool) {

	since := now.Add(-window)
	if override := resetOverrideFor(rules, scope, identity); override.After(since) {
		since = override
	}
	n, err := g.counter.Count(ctx, oc.MerchantID, filter, since)
	if err != nil {
		logging.L(ctx).Warn("antifraud count failed, skipping check",
			"merchant", oc.MerchantID, "scope", scope, "error", err)
		return 0, false
	}
	return n, true
}

// block fires the breach side effects and returns the terminal deny.
func (g *Guard) block(ctx context.Context, oc *OperationContext, scope string, count, limit int) error {
	g.notifyBreach(ctx, oc, scope, count, limit)
	return &BlockError{Scope: scope, Count: count, Limit: limit}
}

// notifyBreach records the metric, alerts the platform operators and
// queues a staff notification. Fire-and-forget: failures are contained by
// the sinks and never influence the decision.
func (g *Guard) notifyBreach(ctx context.Context, oc *OperationContext, scope string, count, limit int) {
	metrics.AntifraudVelocityBlockTotal.WithLabelValues(scope, string(oc.Operation)).Inc()
	if g.alerts != nil {
		g.alerts.AntifraudBlocked(ctx, AdminAlert{
			MerchantID: oc.MerchantID,
			Reason:     "velocity",
			Scope:      scope,
			CustomerID: oc.CustomerID,
			OutletID:   oc.OutletID,
			StaffID:    oc.StaffID,
			DeviceID:   oc.ResolvedDeviceID,
			Count:      count,
			Limit:      int64(limit),
		})
	}
	if g.staff != nil {
		g.staff.EnqueueEvent(ctx, oc.MerchantID, StaffEvent{
			Kind:       "FRAUD",
			Reason:     "velocity",
			Scope:      scope,
			Operation:  string(oc.Operation),
			CustomerID: oc.CustomerID,
			OutletID:   oc.OutletID,
			StaffID:    oc.StaffID,
			DeviceID:   oc.ResolvedDeviceID,
			Count:      count,
			Limit:      int64(limit),
			At:         g.now(),
		})
	}
}

// deepCheck runs the commit-only factor and risk checks. Every outcome
// here is notify-only: high risk and matched block factors are routed to
// staff for follow-up rather than hard-stopping the operation.
func (g *Guard) deepCheck(ctx context.Context, oc *OperationContext, limits Limits,
	rules *merchants.AntifraudRules) {

	if oc.Operation != OpCommit || oc.Hold == nil {
		return
	}
	hold := oc.Hold
	if hold.CustomerID == "" || hold.MerchantID == "" {
		return
	}

	// Points cap on earns: flagged before scoring so oversized earns are
	// visible even when the scorer is unavailable.
	if hold.Mode == holds.ModeEarn && limits.Customer.PointsCap > 0 {
		if earn := abs64(hold.EarnPoints); earn > limits.Customer.PointsCap {
			metrics.AntifraudBlockedTotal.WithLabelValues("LIMIT", "points_cap").Inc()
			g.notifyFactor(ctx, oc, "points_cap", "", earn, limits.Customer.PointsCap)
		}
	}

	var blockFactors []string
	if rules != nil {
		blockFactors = rules.BlockFactors
	}

	for _, factor := range structuralFactors(blockFactors, hold, oc.ResolvedDeviceID) {
		metrics.AntifraudBlockFactorTotal.WithLabelValues(factor).Inc()
		g.notifyFactor(ctx, oc, factor, "", 0, 0)
	}

	if g.scorer == nil {
		return
	}
	tx := &risk.TransactionContext{
		MerchantID: hold.MerchantID,
		CustomerID: hold.CustomerID,
		Amount:     hold.Amount(),
		Kind:       string(hold.Mode),
		OutletID:   hold.OutletID,
		StaffID:    hold.StaffID,
		DeviceID:   firstNonEmpty(hold.DeviceID, oc.ResolvedDeviceID),
		IPAddress:  oc.IPAddress,
		UserAgent:  oc.UserAgent,
	}
	assessment := g.scorer.CheckTransaction(ctx, tx)
	metrics.AntifraudCheckTotal.WithLabelValues(string(oc.Operation)).Inc()
	metrics.AntifraudRiskLevelTotal.WithLabelValues(string(assessment.Level)).Inc()

	if err := g.scorer.RecordCheck(ctx, tx, assessment); err != nil {
		logging.L(ctx).Warn("antifraud check record failed", "merchant", hold.MerchantID, "error", err)
	}

	if assessment.ShouldBlock {
		metrics.AntifraudBlockedTotal.WithLabelValues(string(assessment.Level), "risk").Inc()
		g.notifyRisk(ctx, oc, string(assessment.Level))
	}

	if matched := matchRiskFactor(blockFactors, assessment.Factors); matched != "" {
		metrics.AntifraudBlockFactorTotal.WithLabelValues(matched).Inc()
		g.notifyFactor(ctx, oc, matched, "", 0, 0)
	}
}

// notifyFactor emits the factor-style alert and staff event.
func (g *Guard) notifyFactor(ctx context.Context, oc *OperationContext, factor, level string, amount, limit int64) {
	hold := oc.Hold
	if g.alerts != nil {
		g.alerts.AntifraudBlocked(ctx, AdminAlert{
			MerchantID: hold.MerchantID,
			Reason:     "factor",
			Factor:     factor,
			Level:      level,
			CustomerID: hold.CustomerID,
			OutletID:   hold.OutletID,
			StaffID:    hold.StaffID,
			DeviceID:   firstNonEmpty(hold.DeviceID, oc.ResolvedDeviceID),
			Amount:     amount,
			Limit:      limit,
		})
	}
	if g.staff != nil {
		g.staff.EnqueueEvent(ctx, hold.MerchantID, StaffEvent{
			Kind:       "FRAUD",
			Reason:     "factor",
			Scope:      factor,
			Level:      level,
			Operation:  string(oc.Operation),
			CustomerID: hold.CustomerID,
			OutletID:   hold.OutletID,
			StaffID:    hold.StaffID,
			DeviceID:   firstNonEmpty(hold.DeviceID, oc.ResolvedDeviceID),
			Amount:     amount,
			Limit:      limit,
			At:         g.now(),
		})
	}
}

// notifyRisk emits the risk-verdict alert and staff event.
func (g *Guard) notifyRisk(ctx context.Context, oc *OperationContext, level string) {
	hold := oc.Hold
	if g.alerts != nil {
		g.alerts.AntifraudBlocked(ctx, AdminAlert{
			MerchantID: hold.MerchantID,
			Reason:     "risk",
			Level:      level,
			CustomerID: hold.CustomerID,
			OutletID:   hold.OutletID,
			StaffID:    hold.StaffID,
			DeviceID:   firstNonEmpty(hold.DeviceID, oc.ResolvedDeviceID),
		})
	}
	if g.staff != nil {
		g.staff.EnqueueEvent(ctx, hold.MerchantID, StaffEvent{
			Kind:       "FRAUD",
			Reason:     "risk",
			Level:      level,
			Operation:  string(oc.Operation),
			CustomerID: hold.CustomerID,
			OutletID:   hold.OutletID,
			StaffID:    hold.StaffID,
			DeviceID:   firstNonEmpty(hold.DeviceID, oc.ResolvedDeviceID),
			At:         g.now(),
		})
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
