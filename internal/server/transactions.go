package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stampcard/loyalty/internal/antifraud"
	"github.com/stampcard/loyalty/internal/holds"
	"github.com/stampcard/loyalty/internal/idgen"
	"github.com/stampcard/loyalty/internal/ledger"
	"github.com/stampcard/loyalty/internal/logging"
	"github.com/stampcard/loyalty/internal/metrics"
	"github.com/stampcard/loyalty/internal/traces"
)

// commitHandler handles POST /v1/transactions/commit. The antifraud guard
// runs first; only its structured block stops the operation. The hold is
// then finalized into a ledger transaction.
func (s *Server) commitHandler(c *gin.Context) {
	ctx := c.Request.Context()

	var req struct {
		HoldID     string `json:"holdId" binding:"required"`
		MerchantID string `json:"merchantId"`
		CustomerID string `json:"customerId"`
		OutletID   string `json:"outletId"`
		StaffID    string `json:"staffId"`
		DeviceID   string `json:"deviceId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	ctx, span := traces.StartSpan(ctx, "transactions.commit", traces.HoldID(req.HoldID))
	defer span.End()

	if s.guard != nil {
		allowed, err := s.guard.Admit(ctx, antifraud.AdmitRequest{
			Operation:  antifraud.OpCommit,
			MerchantID: req.MerchantID,
			CustomerID: req.CustomerID,
			OutletID:   req.OutletID,
			StaffID:    req.StaffID,
			DeviceID:   req.DeviceID,
			HoldID:     req.HoldID,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		})
		if !allowed && antifraud.RespondBlocked(c, err) {
			return
		}
	}

	hold, err := s.holdStore.Get(ctx, req.HoldID)
	if errors.Is(err, holds.ErrHoldNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "hold_not_found",
			"message": "No such hold",
		})
		return
	}
	if err != nil {
		logging.L(ctx).Error("failed to load hold", "hold", req.HoldID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load hold",
		})
		return
	}
	if hold.Status != holds.StatusPending {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "hold_not_pending",
			"message": "Hold is not pending",
			"status":  hold.Status,
		})
		return
	}

	now := time.Now()
	if err := s.holdStore.MarkCommitted(ctx, hold.ID, now); err != nil {
		if errors.Is(err, holds.ErrHoldCommitted) {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "hold_not_pending",
				"message": "Hold was already committed",
			})
			return
		}
		logging.L(ctx).Error("failed to commit hold", "hold", hold.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to commit hold",
		})
		return
	}

	txType := ledger.TypeEarn
	if hold.Mode == holds.ModeRedeem {
		txType = ledger.TypeRedeem
	}
	tx := &ledger.Transaction{
		ID:         idgen.WithPrefix("txn_"),
		MerchantID: hold.MerchantID,
		CustomerID: hold.CustomerID,
		OutletID:   hold.OutletID,
		StaffID:    hold.StaffID,
		DeviceID:   hold.DeviceID,
		Type:       txType,
		Amount:     hold.Amount(),
		HoldID:     hold.ID,
		CreatedAt:  now,
	}
	if err := s.ledgerStore.Record(ctx, tx); err != nil {
		logging.L(ctx).Error("failed to record transaction", "hold", hold.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to record transaction",
		})
		return
	}

	metrics.TransactionsTotal.WithLabelValues(string(txType)).Inc()
	s.realtimeHub.BroadcastTransaction(tx)

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// refundHandler handles POST /v1/transactions/refund.
func (s *Server) refundHandler(c *gin.Context) {
	ctx := c.Request.Context()

	var req struct {
		MerchantID    string `json:"merchantId" binding:"required"`
		CustomerID    string `json:"customerId"`
		OutletID      string `json:"outletId"`
		StaffID       string `json:"staffId"`
		DeviceID      string `json:"deviceId"`
		Amount        int64  `json:"amount" binding:"required"`
		TransactionID string `json:"transactionId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	ctx, span := traces.StartSpan(ctx, "transactions.refund", traces.MerchantID(req.MerchantID))
	defer span.End()

	if s.guard != nil {
		allowed, err := s.guard.Admit(ctx, antifraud.AdmitRequest{
			Operation:  antifraud.OpRefund,
			MerchantID: req.MerchantID,
			CustomerID: req.CustomerID,
			OutletID:   req.OutletID,
			StaffID:    req.StaffID,
			DeviceID:   req.DeviceID,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		})
		if !allowed && antifraud.RespondBlocked(c, err) {
			return
		}
	}

	tx := &ledger.Transaction{
		ID:         idgen.WithPrefix("txn_"),
		MerchantID: req.MerchantID,
		CustomerID: req.CustomerID,
		OutletID:   req.OutletID,
		StaffID:    req.StaffID,
		DeviceID:   req.DeviceID,
		Type:       ledger.TypeRefund,
		Amount:     req.Amount,
		RefundOf:   req.TransactionID,
		CreatedAt:  time.Now(),
	}
	if err := s.ledgerStore.Record(ctx, tx); err != nil {
		logging.L(ctx).Error("failed to record refund", "merchant", req.MerchantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to record refund",
		})
		return
	}

	metrics.TransactionsTotal.WithLabelValues(string(ledger.TypeRefund)).Inc()
	s.realtimeHub.BroadcastTransaction(tx)

	c.JSON(http.StatusCreated, gin.H{"transaction": tx})
}
