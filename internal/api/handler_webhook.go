package api

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"escape-analytics-backend/internal/ident"
	"escape-analytics-backend/internal/notification"
	"escape-analytics-backend/internal/store"
)

// webhookRequest covers both request shapes the scraper sends: data insertion
// (action == "insert_data" with slots) and scrape-completed notification.
type webhookRequest struct {
	Action          string                 `json:"action"`
	Slots           []store.NewObservation `json:"slots"`
	BusinessName    string                 `json:"business_name"`
	ScrapeID        string                 `json:"scrape_id"`
	UseUpsert       bool                   `json:"use_upsert"`
	ScrapeCompleted bool                   `json:"scrape_completed"`
	Timestamp       string                 `json:"timestamp"`
}

// PostWebhook handles POST /api/webhook.
func (h *Handler) PostWebhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request body: " + err.Error()})
		return
	}

	if req.Action == "insert_data" {
		h.handleDataInsertion(c, req)
		return
	}
	h.handleScrapeNotification(c, req)
}

func (h *Handler) handleDataInsertion(c *gin.Context, req webhookRequest) {
	log.Printf("data insertion request for %q: %d slots", req.BusinessName, len(req.Slots))

	if len(req.Slots) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "No slots data provided"})
		return
	}
	if len(req.Slots) > h.cfg.Webhook.MaxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": fmt.Sprintf("batch of %d slots exceeds limit of %d", len(req.Slots), h.cfg.Webhook.MaxBatchSize),
		})
		return
	}

	scrapeID := req.ScrapeID
	if scrapeID == "" {
		scrapeID = ident.ScrapeID(time.Now())
	}

	policy := store.PolicyCheckDuplicates
	if req.UseUpsert {
		policy = store.PolicyUpsert
	}

	stored, skipped, err := h.store.Ingest(c.Request.Context(), req.Slots, scrapeID, policy)
	if err != nil {
		log.Printf("data insertion failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Data insertion failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Successfully processed %d room slots", len(stored)),
		"data": gin.H{
			"inserted":  len(stored),
			"skipped":   skipped,
			"scrape_id": scrapeID,
			"slots":     stored,
		},
	})
}

func (h *Handler) handleScrapeNotification(c *gin.Context, req webhookRequest) {
	if !req.ScrapeCompleted {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Scrape not completed"})
		return
	}

	log.Printf("scrape-completed notification for %q at %s", req.BusinessName, req.Timestamp)

	// Give an eventually-consistent store a moment to expose rows written by
	// the external scraper before we look for the latest scrape.
	if h.cfg.Webhook.SettleDelay > 0 {
		select {
		case <-time.After(h.cfg.Webhook.SettleDelay):
		case <-c.Request.Context().Done():
			return
		}
	}

	result, err := h.tracker.ProcessScrape(c.Request.Context(), req.BusinessName)
	if err != nil {
		log.Printf("scrape processing failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Webhook processing failed: " + err.Error(),
		})
		return
	}
	if result.LogErr != nil {
		// Change logging is best-effort: keep the snapshot data and the
		// response, surface the miss in the logs only.
		log.Printf("change-log write failed (continuing): %v", result.LogErr)
	}

	if len(result.Changes) > 0 && h.pool != nil {
		h.pool.Dispatch(notification.ChangeAlert{
			BusinessName: req.BusinessName,
			Changes:      len(result.Changes),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Processed %d slots, detected %d changes", result.Processed, len(result.Changes)),
		"data": gin.H{
			"processed":      result.Processed,
			"changes":        len(result.Changes),
			"latestScrapeId": result.LatestScrapeID,
		},
	})
}

// GetWebhookInfo handles GET /api/webhook: a static description of the two
// supported request shapes, doubling as a health check.
func (h *Handler) GetWebhookInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Webhook endpoint is active",
		"endpoints": gin.H{
			"POST /api/webhook": gin.H{
				"Data Insertion": gin.H{
					"description": "Insert room slots data with duplicate protection",
					"body": gin.H{
						"action":        "insert_data",
						"slots":         "Array of room slot objects",
						"business_name": "string (optional)",
						"scrape_id":     "string (optional)",
						"use_upsert":    "boolean (optional, default: false)",
					},
				},
				"Webhook Notification": gin.H{
					"description": "Notify completion of scrape for change detection",
					"body": gin.H{
						"business_name":    "string (optional)",
						"scrape_completed": true,
						"timestamp":        "ISO string",
					},
				},
			},
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
