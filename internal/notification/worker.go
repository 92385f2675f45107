package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"escape-analytics-backend/internal/hours"
	"escape-analytics-backend/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of Sender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// ChangeAlert is one notification job: booking changes were detected for a
// business.
type ChangeAlert struct {
	BusinessName string
	Changes      int
}

// WorkerPool manages a pool of workers for sending change alerts.
type WorkerPool struct {
	size    int
	jobs    chan ChangeAlert
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan ChangeAlert, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case alert := <-wp.jobs:
			log.Printf("Worker %d processing alert for %q (%d changes)", id, alert.BusinessName, alert.Changes)
			wp.sendAlertNotifications(ctx, alert)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch sends a job to the worker pool.
func (wp *WorkerPool) Dispatch(alert ChangeAlert) {
	wp.jobs <- alert
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan ChangeAlert {
	return wp.jobs
}

// SetSender replaces the sender, for testing.
func (wp *WorkerPool) SetSender(s Sender) {
	wp.sender = s
}

// sendAlertNotifications fetches matching subscriptions and pushes the alert.
// Subscriptions with an empty business name receive alerts for every business.
func (wp *WorkerPool) sendAlertNotifications(ctx context.Context, alert ChangeAlert) {
	normalized := hours.Normalize(alert.BusinessName)

	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Where("business_name = ? OR business_name = ''", normalized).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for %q: %v", alert.BusinessName, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	label := alert.BusinessName
	if label == "" {
		label = "all businesses"
	}
	message := fmt.Sprintf("%d booking change(s) detected for %s", alert.Changes, label)
	log.Printf("Sending %d notifications for %q", len(subscriptions), alert.BusinessName)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Expired subscriptions get cleaned up on the spot.
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
