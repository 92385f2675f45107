package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"escape-analytics-backend/config"
	"escape-analytics-backend/internal/metrics"
	"escape-analytics-backend/internal/notification"
	"escape-analytics-backend/internal/store"
	"escape-analytics-backend/internal/tracker"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	cfg     *config.Config
	store   store.Store
	tracker *tracker.Service
	metrics *metrics.Aggregator
	pool    *notification.WorkerPool
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(cfg *config.Config, s store.Store, t *tracker.Service, m *metrics.Aggregator, pool *notification.WorkerPool, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		cfg:     cfg,
		store:   s,
		tracker: t,
		metrics: m,
		pool:    pool,
		webpush: webpushOptions,
	}
}
