package antifraud

import (
	"strings"

	"github.com/stampcard/loyalty/internal/holds"
)

// Structural factor keys checked directly against the hold's resolved
// context, without involving the risk scorer.
const (
	FactorNoOutlet = "no_outlet_id"
	FactorNoDevice = "no_device_id"
	FactorNoStaff  = "no_staff_id"
)

// structuralFactors returns the configured block factors that match the
// hold's resolved context, in a stable order.
func structuralFactors(blockFactors []string, hold *holds.Hold, resolvedDeviceID string) []string {
	if len(blockFactors) == 0 {
		return nil
	}
	var matched []string
	if hasFactor(blockFactors, FactorNoOutlet) && hold.OutletID == "" {
		matched = append(matched, FactorNoOutlet)
	}
	if hasFactor(blockFactors, FactorNoDevice) && hold.DeviceID == "" && resolvedDeviceID == "" {
		matched = append(matched, FactorNoDevice)
	}
	if hasFactor(blockFactors, FactorNoStaff) && hold.StaffID == "" {
		matched = append(matched, FactorNoStaff)
	}
	return matched
}

// matchRiskFactor returns the first scored factor whose key (before any
// ":"-delimited detail) appears in the merchant's block factor list.
func matchRiskFactor(blockFactors, scored []string) string {
	if len(blockFactors) == 0 {
		return ""
	}
	for _, f := range scored {
		key, _, _ := strings.Cut(f, ":")
		if hasFactor(blockFactors, key) {
			return key
		}
	}
	return ""
}

func hasFactor(factors []string, key string) bool {
	for _, f := range factors {
		if f == key {
			return true
		}
	}
	return false
}
