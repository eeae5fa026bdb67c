package devices

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stampcard/loyalty/internal/idgen"
	"github.com/stampcard/loyalty/internal/logging"
)

// Handler exposes the device registry over HTTP.
type Handler struct {
	store Store
}

// NewHandler creates a device registry handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the device routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/merchants/:merchantId/devices", h.CreateDevice)
	rg.GET("/devices/:deviceId", h.GetDevice)
}

// CreateDevice handles POST /merchants/:merchantId/devices.
func (h *Handler) CreateDevice(c *gin.Context) {
	merchantID := c.Param("merchantId")

	var req struct {
		Code     string `json:"code" binding:"required"`
		OutletID string `json:"outletId"`
		Label    string `json:"label"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	normalized := NormalizeCode(req.Code)
	if normalized == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_code",
			"message": "Device code must contain at least one significant character",
		})
		return
	}

	d := &Device{
		ID:             idgen.WithPrefix("dev_"),
		MerchantID:     merchantID,
		OutletID:       req.OutletID,
		Label:          req.Label,
		Code:           req.Code,
		CodeNormalized: normalized,
		CreatedAt:      time.Now(),
	}
	if err := h.store.Create(c.Request.Context(), d); err != nil {
		logging.L(c.Request.Context()).Error("failed to create device", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to create device",
		})
		return
	}
	c.JSON(http.StatusCreated, d)
}

// GetDevice handles GET /devices/:deviceId.
func (h *Handler) GetDevice(c *gin.Context) {
	d, err := h.store.Get(c.Request.Context(), c.Param("deviceId"))
	if errors.Is(err, ErrDeviceNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "device_not_found",
			"message": "No such device",
		})
		return
	}
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to get device", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load device",
		})
		return
	}
	c.JSON(http.StatusOK, d)
}
