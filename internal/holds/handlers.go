package holds

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stampcard/loyalty/internal/idgen"
	"github.com/stampcard/loyalty/internal/logging"
)

// Handler exposes hold creation and lookup over HTTP. Commit lives in the
// server package because it spans the guard and the ledger.
type Handler struct {
	store Store
}

// NewHandler creates a holds handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the hold routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/holds", h.CreateHold)
	rg.GET("/holds/:holdId", h.GetHold)
}

// CreateHold handles POST /holds.
func (h *Handler) CreateHold(c *gin.Context) {
	var req struct {
		MerchantID   string `json:"merchantId" binding:"required"`
		CustomerID   string `json:"customerId" binding:"required"`
		OutletID     string `json:"outletId"`
		StaffID      string `json:"staffId"`
		DeviceID     string `json:"deviceId"`
		Mode         Mode   `json:"mode" binding:"required"`
		EarnPoints   int64  `json:"earnPoints"`
		RedeemAmount int64  `json:"redeemAmount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	switch req.Mode {
	case ModeEarn:
		if req.EarnPoints <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_amount",
				"message": "earnPoints must be positive for EARN holds",
			})
			return
		}
	case ModeRedeem:
		if req.RedeemAmount <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_amount",
				"message": "redeemAmount must be positive for REDEEM holds",
			})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_mode",
			"message": "mode must be EARN or REDEEM",
		})
		return
	}

	now := time.Now()
	hold := &Hold{
		ID:           idgen.WithPrefix("hold_"),
		MerchantID:   req.MerchantID,
		CustomerID:   req.CustomerID,
		OutletID:     req.OutletID,
		StaffID:      req.StaffID,
		DeviceID:     req.DeviceID,
		Mode:         req.Mode,
		EarnPoints:   req.EarnPoints,
		RedeemAmount: req.RedeemAmount,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.store.Create(c.Request.Context(), hold); err != nil {
		logging.L(c.Request.Context()).Error("failed to create hold", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to create hold",
		})
		return
	}
	c.JSON(http.StatusCreated, hold)
}

// GetHold handles GET /holds/:holdId.
func (h *Handler) GetHold(c *gin.Context) {
	hold, err := h.store.Get(c.Request.Context(), c.Param("holdId"))
	if errors.Is(err, ErrHoldNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "hold_not_found",
			"message": "No such hold",
		})
		return
	}
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to get hold", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load hold",
		})
		return
	}
	c.JSON(http.StatusOK, hold)
}
