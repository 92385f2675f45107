package model

import "time"

// SlotObservation is one scraped snapshot of a bookable hour. Rows form a time
// series per (room_id, booking_date, hour); the generated ID is the primary key
// and doubles as the idempotency token for ingestion.
type SlotObservation struct {
	ID              string    `gorm:"primaryKey;size:160" json:"id"`
	RoomID          string    `gorm:"size:128;not null;index:idx_slot_key,priority:1" json:"room_id"`
	BookingDate     string    `gorm:"size:16;not null;index:idx_slot_key,priority:2" json:"booking_date"`
	Hour            string    `gorm:"size:16;not null;index:idx_slot_key,priority:3" json:"hour"`
	BusinessName    string    `gorm:"size:256;index" json:"business_name"`
	RoomName        string    `gorm:"size:256" json:"room_name"`
	IsAvailable     bool      `gorm:"not null" json:"is_available"`
	AvailableSlots  int       `gorm:"not null" json:"available_slots"`
	TotalCapacity   int       `json:"total_capacity"`
	BookedCapacity  int       `json:"booked_capacity"`
	ScrapeTimestamp time.Time `gorm:"not null;index" json:"scrape_timestamp"`
	ScrapeID        string    `gorm:"size:128;index" json:"scrape_id"`
}
