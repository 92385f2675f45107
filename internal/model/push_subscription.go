package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// BusinessName is stored normalized; an empty value subscribes to changes
// across all businesses.
type PushSubscription struct {
	Endpoint     string    `gorm:"primaryKey"`
	P256DH       string    `gorm:"column:p256dh;not null"`
	Auth         string    `gorm:"not null"`
	BusinessName string    `gorm:"size:256;index"`
	CreatedAt    time.Time `gorm:"not null"`
}
