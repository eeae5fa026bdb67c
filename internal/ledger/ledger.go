// Package ledger tracks committed points transactions per merchant.
//
// The ledger is the system of record the antifraud guard counts against:
// every commit/refund appends a transaction, and velocity checks are
// time-windowed counts over this table scoped by merchant plus an optional
// outlet/device/staff/customer filter.
package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidAmount = errors.New("ledger: invalid amount")
	ErrNotFound      = errors.New("ledger: transaction not found")
)

// Type classifies a points transaction.
type Type string

const (
	TypeEarn   Type = "earn"
	TypeRedeem Type = "redeem"
	TypeRefund Type = "refund"
)

// Transaction is a committed points operation.
type Transaction struct {
	ID         string    `json:"id"`
	MerchantID string    `json:"merchantId"`
	CustomerID string    `json:"customerId,omitempty"`
	OutletID   string    `json:"outletId,omitempty"`
	StaffID    string    `json:"staffId,omitempty"`
	DeviceID   string    `json:"deviceId,omitempty"`
	Type       Type      `json:"type"`
	Amount     int64     `json:"amount"` // points earned or redeemed (absolute)
	HoldID     string    `json:"holdId,omitempty"`
	RefundOf   string    `json:"refundOf,omitempty"` // original transaction for refunds
	CreatedAt  time.Time `json:"createdAt"`
}

// CountFilter narrows a velocity count to a single identity within a merchant.
// Zero-value fields are not applied.
type CountFilter struct {
	CustomerID string
	OutletID   string
	StaffID    string
	DeviceID   string
}

// Store persists and counts transactions.
type Store interface {
	Record(ctx context.Context, tx *Transaction) error
	// Count returns the number of transactions for the merchant since the
	// given time, narrowed by the filter.
	Count(ctx context.Context, merchantID string, f CountFilter, since time.Time) (int, error)
	// ListByCustomer returns a customer's transactions since the given time,
	// most recent first. Used by the risk engine for factor analysis.
	ListByCustomer(ctx context.Context, merchantID, customerID string, since time.Time, limit int) ([]*Transaction, error)
}
