package antifraud

import (
	"context"
	"strings"

	"github.com/stampcard/loyalty/internal/devices"
	"github.com/stampcard/loyalty/internal/holds"
	"github.com/stampcard/loyalty/internal/logging"
)

// ContextResolver builds the resolved identity set for one operation.
type ContextResolver struct {
	holds   HoldStore
	devices DeviceStore
}

// NewContextResolver creates a resolver over the given stores.
func NewContextResolver(holds HoldStore, devices DeviceStore) *ContextResolver {
	return &ContextResolver{holds: holds, devices: devices}
}

// Resolve derives the operation context from the request and, for commits,
// from the referenced pending hold. Hold fields take precedence over values
// present directly on the request. Lookup failures are non-fatal: the guard
// proceeds with whatever identity it managed to resolve and the primary
// handler performs strict validation later.
func (r *ContextResolver) Resolve(ctx context.Context, req AdmitRequest) *OperationContext {
	oc := &OperationContext{
		Operation:  req.Operation,
		MerchantID: req.MerchantID,
		CustomerID: req.CustomerID,
		OutletID:   req.OutletID,
		StaffID:    req.StaffID,
		DeviceID:   req.DeviceID,
		HoldID:     req.HoldID,
		IPAddress:  req.IPAddress,
		UserAgent:  req.UserAgent,
	}

	if req.Operation == OpCommit && req.HoldID != "" && r.holds != nil {
		hold, err := r.holds.Get(ctx, req.HoldID)
		switch {
		case err == holds.ErrHoldNotFound:
			// Missing hold is the primary handler's problem.
		case err != nil:
			logging.L(ctx).Warn("antifraud hold lookup failed", "hold", req.HoldID, "error", err)
		default:
			oc.Hold = hold
			oc.MerchantID = firstNonEmpty(hold.MerchantID, oc.MerchantID)
			oc.CustomerID = firstNonEmpty(hold.CustomerID, oc.CustomerID)
			oc.OutletID = firstNonEmpty(hold.OutletID, oc.OutletID)
			oc.StaffID = firstNonEmpty(hold.StaffID, oc.StaffID)
			oc.DeviceID = firstNonEmpty(hold.DeviceID, oc.DeviceID)
			oc.ResolvedDeviceID = hold.DeviceID
		}
	}

	if oc.MerchantID == "" {
		// Cannot decide without a merchant; the guard will fail open.
		return oc
	}

	if oc.ResolvedDeviceID == "" && oc.DeviceID != "" {
		oc.ResolvedDeviceID = r.resolveDevice(ctx, oc.MerchantID, oc.DeviceID)
	}
	return oc
}

// resolveDevice maps a raw device code to a canonical device id. It first
// tries the normalized-code lookup among the merchant's active devices,
// then falls back to treating the raw value as a literal device id that
// must belong to the merchant and not be archived. Returns "" when neither
// path resolves; strict device validation happens in the primary handler.
func (r *ContextResolver) resolveDevice(ctx context.Context, merchantID, raw string) string {
	if r.devices == nil {
		return ""
	}
	rawCode := strings.TrimSpace(raw)
	if rawCode == "" {
		return ""
	}

	if normalized := devices.NormalizeCode(rawCode); normalized != "" {
		d, err := r.devices.FindActiveByCode(ctx, merchantID, normalized)
		if err == nil {
			return d.ID
		}
		if err != devices.ErrDeviceNotFound {
			logging.L(ctx).Debug("antifraud device code lookup failed", "error", err)
		}
	}

	d, err := r.devices.Get(ctx, rawCode)
	if err != nil {
		if err != devices.ErrDeviceNotFound {
			logging.L(ctx).Debug("antifraud device id lookup failed", "error", err)
		}
		return ""
	}
	if d.MerchantID != merchantID || d.Archived() {
		return ""
	}
	return d.ID
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
