package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetCycles handles the GET /api/bays/{bay_id}/cycles request,
// returning the most recent completed cycles for the bay.
func (h *Handler) GetCycles(c *gin.Context) {
	bayID, ok := bayIDParam(c)
	if !ok {
		return
	}

	history, err := h.store.CycleHistory(c.Request.Context(), bayID, h.historyLimit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve cycle history"})
		return
	}
	c.JSON(http.StatusOK, history)
}

// GetRevenue handles the GET /api/revenue request.
func (h *Handler) GetRevenue(c *gin.Context) {
	summary, err := h.store.Revenue(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate revenue"})
		return
	}
	c.JSON(http.StatusOK, summary)
}
