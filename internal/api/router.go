package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"escape-analytics-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(h.cfg.Server.RateLimitPerSec), h.cfg.Server.RateLimitBurst)

	cacheTTL := time.Duration(h.cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Scraper-facing webhook.
		api.POST("/webhook", h.PostWebhook)
		api.GET("/webhook", h.GetWebhookInfo)

		// Change log and raw views.
		api.GET("/changes", caching, h.GetChanges)
		api.GET("/slots/timeseries", caching, h.GetSlotTimeSeries)
		api.GET("/availability/latest", caching, h.GetLatestAvailability)
		api.GET("/velocity", caching, h.GetBookingVelocity)

		// Aggregated metrics.
		api.GET("/metrics/rooms", caching, h.GetRoomMetrics)
		api.GET("/metrics/daily", caching, h.GetDailyMetrics)
		api.GET("/metrics/hourly", caching, h.GetHourlyMetrics)
		api.GET("/metrics/summary", caching, h.GetBusinessSummary)

		// Push subscriptions.
		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
