// Package antifraud implements the admission-control guard that gates
// points commit/refund operations.
//
// The guard layers five checks on top of each other: per-scope velocity
// limits and daily/weekly/monthly caps (merchant → outlet → device →
// staff → customer, first hard block wins), merchant-configured block
// factors, and deep risk scoring for commits. It is a pure decision
// function over externally-owned state: counting, holds, devices,
// settings and risk scoring are all consumed through narrow interfaces,
// and every collaborator failure is swallowed fail-open. Only a
// *BlockError ever escapes Admit.
package antifraud

import (
	"context"
	"fmt"
	"time"

	"github.com/stampcard/loyalty/internal/devices"
	"github.com/stampcard/loyalty/internal/holds"
	"github.com/stampcard/loyalty/internal/ledger"
	"github.com/stampcard/loyalty/internal/merchants"
	"github.com/stampcard/loyalty/internal/risk"
)

// Scope is the dimension along which velocity and caps are measured.
type Scope string

const (
	ScopeMerchant Scope = "merchant"
	ScopeOutlet   Scope = "outlet"
	ScopeDevice   Scope = "device"
	ScopeStaff    Scope = "staff"
	ScopeCustomer Scope = "customer"
)

// ScopeOrder is the fixed evaluation precedence. The evaluator
// short-circuits at the first hard block, so earlier scopes outrank
// later ones when several would independently block.
var ScopeOrder = [...]Scope{ScopeMerchant, ScopeOutlet, ScopeDevice, ScopeStaff, ScopeCustomer}

// Operation is the guarded operation kind.
type Operation string

const (
	OpCommit Operation = "commit"
	OpRefund Operation = "refund"
)

// BlockError is the guard's terminal deny. The scope label carries the
// window suffix for cap breaches (e.g. "customer_daily").
type BlockError struct {
	Scope string
	Count int
	Limit int
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("antifraud: operation limit exceeded (%s=%d/%d)", e.Scope, e.Count, e.Limit)
}

// ScopeLimit is the effective limit set for one scope. MonthlyCap,
// PointsCap and BlockDaily are only used on the customer scope.
// A cap of zero means that cap is disabled.
type ScopeLimit struct {
	Limit      int
	WindowSec  int
	DailyCap   int
	WeeklyCap  int
	MonthlyCap int
	PointsCap  int64
	BlockDaily bool
}

// Limits is the full effective limit configuration for one merchant.
type Limits struct {
	Customer ScopeLimit
	Outlet   ScopeLimit
	Device   ScopeLimit
	Staff    ScopeLimit
	Merchant ScopeLimit
}

// AdmitRequest is the inbound operation the guard decides on.
type AdmitRequest struct {
	Operation  Operation
	MerchantID string
	CustomerID string
	OutletID   string
	StaffID    string
	DeviceID   string // raw device id or code as sent by the client
	HoldID     string
	IPAddress  string
	UserAgent  string
}

// OperationContext is the resolved identity set for one operation.
// Built once per request, immutable afterwards.
type OperationContext struct {
	Operation        Operation
	MerchantID       string
	CustomerID       string
	OutletID         string
	StaffID          string
	DeviceID         string // raw input
	ResolvedDeviceID string // canonical device identity after lookup
	HoldID           string
	Hold             *holds.Hold // resolved pending hold (commits only)
	IPAddress        string
	UserAgent        string
}

// AdminAlert is an operator-facing alert about an antifraud event.
type AdminAlert struct {
	MerchantID string `json:"merchantId"`
	Reason     string `json:"reason"` // velocity | factor | risk
	Scope      string `json:"scope,omitempty"`
	Factor     string `json:"factor,omitempty"`
	Level      string `json:"level,omitempty"`
	CustomerID string `json:"customerId,omitempty"`
	OutletID   string `json:"outletId,omitempty"`
	StaffID    string `json:"staffId,omitempty"`
	DeviceID   string `json:"deviceId,omitempty"`
	Count      int    `json:"count,omitempty"`
	Limit      int64  `json:"limit,omitempty"`
	Amount     int64  `json:"amount,omitempty"`
}

// StaffEvent is a merchant-staff notification about an antifraud event.
type StaffEvent struct {
	Kind       string    `json:"kind"` // always "FRAUD"
	Reason     string    `json:"reason"`
	Scope      string    `json:"scope,omitempty"`
	Level      string    `json:"level,omitempty"`
	Operation  string    `json:"operation"`
	CustomerID string    `json:"customerId,omitempty"`
	OutletID   string    `json:"outletId,omitempty"`
	StaffID    string    `json:"staffId,omitempty"`
	DeviceID   string    `json:"deviceId,omitempty"`
	Count      int       `json:"count,omitempty"`
	Limit      int64     `json:"limit,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	At         time.Time `json:"at"`
}

// Collaborator contracts. The guard owns no state of its own.

// Counter is the time-windowed counting collaborator.
type Counter interface {
	Count(ctx context.Context, merchantID string, f ledger.CountFilter, since time.Time) (int, error)
}

// HoldStore resolves pending holds for commits.
type HoldStore interface {
	Get(ctx context.Context, id string) (*holds.Hold, error)
}

// DeviceStore resolves raw device codes to canonical devices.
type DeviceStore interface {
	FindActiveByCode(ctx context.Context, merchantID, normalizedCode string) (*devices.Device, error)
	Get(ctx context.Context, id string) (*devices.Device, error)
}

// SettingsStore supplies per-merchant antifraud rules.
type SettingsStore interface {
	GetSettings(ctx context.Context, merchantID string) (*merchants.Settings, error)
}

// AdminAlerter receives operator alerts. Fire-and-forget.
type AdminAlerter interface {
	AntifraudBlocked(ctx context.Context, a AdminAlert)
}

// StaffNotifier fans fraud events out to merchant staff. Fire-and-forget.
type StaffNotifier interface {
	EnqueueEvent(ctx context.Context, merchantID string, e StaffEvent)
}

// Scorer is the external risk-scoring collaborator.
type Scorer interface {
	CheckTransaction(ctx context.Context, tx *risk.TransactionContext) *risk.Assessment
	RecordCheck(ctx context.Context, tx *risk.TransactionContext, a *risk.Assessment) error
}
