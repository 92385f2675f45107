package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"escape-analytics-backend/internal/store"
)

// GetChanges handles GET /api/changes. Filters: room_id, business_name, start,
// end (RFC3339).
func (h *Handler) GetChanges(c *gin.Context) {
	filter := store.ChangeFilter{
		RoomID:       c.Query("room_id"),
		BusinessName: c.Query("business_name"),
	}

	if v := c.Query("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid 'start' timestamp, use RFC3339"})
			return
		}
		filter.Start = t
	}
	if v := c.Query("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid 'end' timestamp, use RFC3339"})
			return
		}
		filter.End = t
	}

	changes, err := h.store.Changes(c.Request.Context(), filter)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to retrieve changes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": changes})
}

// GetSlotTimeSeries handles GET /api/slots/timeseries?room_id=&booking_date=&hour=.
func (h *Handler) GetSlotTimeSeries(c *gin.Context) {
	roomID := c.Query("room_id")
	bookingDate := c.Query("booking_date")
	hour := c.Query("hour")
	if roomID == "" || bookingDate == "" || hour == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "room_id, booking_date and hour are required"})
		return
	}

	points, err := h.store.SlotTimeSeries(c.Request.Context(), roomID, bookingDate, hour)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to retrieve slot time series"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": points})
}

// GetLatestAvailability handles GET /api/availability/latest?business_name=.
func (h *Handler) GetLatestAvailability(c *gin.Context) {
	slots, err := h.store.LatestAvailability(c.Request.Context(), c.Query("business_name"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to retrieve latest availability"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": slots})
}

// GetBookingVelocity handles GET /api/velocity?business_name=&window_hours=.
func (h *Handler) GetBookingVelocity(c *gin.Context) {
	windowHours := 24
	if v := c.Query("window_hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "window_hours must be a positive integer"})
			return
		}
		windowHours = n
	}

	buckets, err := h.store.BookingVelocity(c.Request.Context(), c.Query("business_name"),
		time.Duration(windowHours)*time.Hour, time.Now().UTC())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to compute booking velocity"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": buckets})
}
