// Package devices manages the per-merchant cashier device registry.
package devices

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrDeviceNotFound = errors.New("devices: not found")

// Device is a registered cashier terminal or QR stand.
type Device struct {
	ID             string     `json:"id"`
	MerchantID     string     `json:"merchantId"`
	OutletID       string     `json:"outletId,omitempty"`
	Label          string     `json:"label,omitempty"`
	Code           string     `json:"code"`
	CodeNormalized string     `json:"codeNormalized"`
	ArchivedAt     *time.Time `json:"archivedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Archived reports whether the device has been retired.
func (d *Device) Archived() bool {
	return d.ArchivedAt != nil
}

// NormalizeCode canonicalizes a user-entered device code: trimmed,
// upper-cased, with spaces, dashes and underscores removed, so that
// "ab-12 34" and "AB1234" resolve to the same device.
func NormalizeCode(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch r {
		case ' ', '\t', '-', '_':
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// Store persists devices.
type Store interface {
	Create(ctx context.Context, d *Device) error
	// FindActiveByCode looks up a non-archived device by normalized code
	// within a merchant.
	FindActiveByCode(ctx context.Context, merchantID, normalizedCode string) (*Device, error)
	// Get looks up a device by its literal ID regardless of merchant or
	// archive state; callers verify ownership themselves.
	Get(ctx context.Context, id string) (*Device, error)
}
