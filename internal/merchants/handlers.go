package merchants

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stampcard/loyalty/internal/logging"
)

// Handler exposes merchant settings over HTTP.
type Handler struct {
	store Store
}

// NewHandler creates a merchant settings handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the settings routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/merchants/:merchantId/settings", h.GetSettings)
	rg.PUT("/merchants/:merchantId/settings", h.PutSettings)
}

// GetSettings handles GET /merchants/:merchantId/settings.
func (h *Handler) GetSettings(c *gin.Context) {
	merchantID := c.Param("merchantId")

	s, err := h.store.GetSettings(c.Request.Context(), merchantID)
	if errors.Is(err, ErrSettingsNotFound) {
		// A merchant with no stored settings runs on platform defaults.
		c.JSON(http.StatusOK, &Settings{MerchantID: merchantID})
		return
	}
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to load merchant settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load settings",
		})
		return
	}
	c.JSON(http.StatusOK, s)
}

// PutSettings handles PUT /merchants/:merchantId/settings.
func (h *Handler) PutSettings(c *gin.Context) {
	merchantID := c.Param("merchantId")

	var rules Rules
	if err := c.ShouldBindJSON(&rules); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if err := ValidateRules(&rules); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_rules",
			"message": err.Error(),
		})
		return
	}

	s := &Settings{MerchantID: merchantID, Rules: rules}
	if err := h.store.UpsertSettings(c.Request.Context(), s); err != nil {
		logging.L(c.Request.Context()).Error("failed to save merchant settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to save settings",
		})
		return
	}
	c.JSON(http.StatusOK, s)
}
