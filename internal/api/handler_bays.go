package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"carwash-bay-backend/internal/station"
	"carwash-bay-backend/internal/washbay"
)

func bayIDParam(c *gin.Context) (int64, bool) {
	bayID, err := strconv.ParseInt(c.Param("bay_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid bay ID"})
		return 0, false
	}
	return bayID, true
}

// GetBays handles the GET /api/bays request.
func (h *Handler) GetBays(c *gin.Context) {
	c.JSON(http.StatusOK, h.station.StatusAll())
}

// GetBay handles the GET /api/bays/{bay_id} request.
func (h *Handler) GetBay(c *gin.Context) {
	bayID, ok := bayIDParam(c)
	if !ok {
		return
	}

	status, err := h.station.Status(bayID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Bay not found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// PostWash handles the POST /api/bays/{bay_id}/wash request. The body
// carries the selected services for the vehicle.
func (h *Handler) PostWash(c *gin.Context) {
	bayID, ok := bayIDParam(c)
	if !ok {
		return
	}

	var opts washbay.Options
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := h.station.RequestWash(c.Request.Context(), bayID, opts)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, status)
	case errors.Is(err, station.ErrUnknownBay):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Bay not found"})
	case errors.Is(err, washbay.ErrOccupied):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Bay is occupied"})
	case errors.Is(err, washbay.ErrInvalidServices):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "Waxing requires hand drying"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to start wash"})
	}
}

// PostAdvance handles the POST /api/bays/{bay_id}/advance request,
// stepping the bay through exactly one phase transition.
func (h *Handler) PostAdvance(c *gin.Context) {
	bayID, ok := bayIDParam(c)
	if !ok {
		return
	}

	result, err := h.station.Advance(c.Request.Context(), bayID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case errors.Is(err, station.ErrUnknownBay):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Bay not found"})
	default:
		// Includes the unrecoverable invalid-phase case.
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
