package risk

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stampcard/loyalty/internal/logging"
)

// Handler exposes the risk assessment audit trail over HTTP.
type Handler struct {
	store Store
}

// NewHandler creates a risk assessment handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the risk routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/merchants/:merchantId/customers/:customerId/risk", h.ListAssessments)
}

// ListAssessments handles
// GET /merchants/:merchantId/customers/:customerId/risk.
func (h *Handler) ListAssessments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	assessments, err := h.store.ListByCustomer(c.Request.Context(),
		c.Param("merchantId"), c.Param("customerId"), limit)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list risk assessments", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load risk assessments",
		})
		return
	}
	if assessments == nil {
		assessments = []*Assessment{}
	}
	c.JSON(http.StatusOK, gin.H{"assessments": assessments, "count": len(assessments)})
}
