package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetRoomMetrics handles GET /api/metrics/rooms?business_name=.
func (h *Handler) GetRoomMetrics(c *gin.Context) {
	rooms, err := h.metrics.Rooms(c.Request.Context(), c.Query("business_name"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to compute room metrics"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rooms})
}

// GetDailyMetrics handles GET /api/metrics/daily?business_name=.
func (h *Handler) GetDailyMetrics(c *gin.Context) {
	daily, err := h.metrics.Daily(c.Request.Context(), c.Query("business_name"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to compute daily metrics"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": daily})
}

// GetHourlyMetrics handles GET /api/metrics/hourly?business_name=.
func (h *Handler) GetHourlyMetrics(c *gin.Context) {
	hourly, err := h.metrics.Hourly(c.Request.Context(), c.Query("business_name"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to compute hourly metrics"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": hourly})
}

// GetBusinessSummary handles GET /api/metrics/summary?business_name=.
func (h *Handler) GetBusinessSummary(c *gin.Context) {
	summary, err := h.metrics.Business(c.Request.Context(), c.Query("business_name"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to compute business summary"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
}
