// Package holds manages pending, not-yet-committed points operations.
//
// A hold reserves an earn or redeem against a customer until the cashier
// confirms it. Commit finalizes the hold into a ledger transaction; the
// antifraud guard resolves its identity context from the hold before that
// happens.
package holds

import (
	"context"
	"errors"
	"time"
)

var (
	ErrHoldNotFound  = errors.New("holds: not found")
	ErrHoldCommitted = errors.New("holds: already committed")
)

// Mode is the direction of a pending operation.
type Mode string

const (
	ModeEarn   Mode = "EARN"
	ModeRedeem Mode = "REDEEM"
)

// Status is a hold's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCommitted Status = "committed"
	StatusCancelled Status = "cancelled"
)

// Hold is a pending points operation.
type Hold struct {
	ID           string    `json:"id"`
	MerchantID   string    `json:"merchantId"`
	CustomerID   string    `json:"customerId"`
	OutletID     string    `json:"outletId,omitempty"`
	StaffID      string    `json:"staffId,omitempty"`
	DeviceID     string    `json:"deviceId,omitempty"`
	Mode         Mode      `json:"mode"`
	EarnPoints   int64     `json:"earnPoints,omitempty"`
	RedeemAmount int64     `json:"redeemAmount,omitempty"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Amount returns the absolute points amount of the pending operation.
func (h *Hold) Amount() int64 {
	v := h.EarnPoints
	if h.Mode == ModeRedeem {
		v = h.RedeemAmount
	}
	if v < 0 {
		return -v
	}
	return v
}

// Store persists holds.
type Store interface {
	Create(ctx context.Context, h *Hold) error
	Get(ctx context.Context, id string) (*Hold, error)
	// MarkCommitted transitions a pending hold to committed.
	MarkCommitted(ctx context.Context, id string, at time.Time) error
}
