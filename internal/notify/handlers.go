package notify

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stampcard/loyalty/internal/antifraud"
	"github.com/stampcard/loyalty/internal/logging"
)

// InboxStore lists persisted staff events; both concrete stores satisfy it.
type InboxStore interface {
	ListByMerchant(ctx context.Context, merchantID string, limit int) ([]antifraud.StaffEvent, error)
}

// Handler exposes the staff fraud-event inbox over HTTP.
type Handler struct {
	inbox InboxStore
}

// NewHandler creates a fraud-event inbox handler.
func NewHandler(inbox InboxStore) *Handler {
	return &Handler{inbox: inbox}
}

// RegisterRoutes mounts the inbox routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/merchants/:merchantId/fraud-events", h.ListFraudEvents)
}

// ListFraudEvents handles GET /merchants/:merchantId/fraud-events.
func (h *Handler) ListFraudEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	events, err := h.inbox.ListByMerchant(c.Request.Context(), c.Param("merchantId"), limit)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list fraud events", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load fraud events",
		})
		return
	}
	if events == nil {
		events = []antifraud.StaffEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}
