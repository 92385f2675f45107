package api

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"escape-analytics-backend/config"
	"escape-analytics-backend/internal/metrics"
	"escape-analytics-backend/internal/model"
	"escape-analytics-backend/internal/store"
	"escape-analytics-backend/internal/tracker"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			RateLimitPerSec: 1000,
			RateLimitBurst:  1000,
			CacheTTLSeconds: 1,
		},
		Webhook: config.WebhookConfig{
			// No settle delay in tests; the store is written synchronously.
			MaxBatchSize: 5,
		},
	}
}

// setupTestAPI builds a full router over a per-test in-memory database.
func setupTestAPI(t *testing.T) (*gin.Engine, store.Store) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.SlotObservation{}, &model.BookingChange{}, &model.PushSubscription{}))

	cfg := testConfig()
	s := store.NewGormStore(db, 2, time.Millisecond)
	h := NewHandler(cfg, s, tracker.New(s), metrics.New(s, cfg.BusinessHours), nil, nil)
	return NewRouter(h), s
}
