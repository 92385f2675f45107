package model

import "time"

// BookingChange records that a slot's available capacity changed between two
// consecutive observations. Rows are append-only and never mutated.
type BookingChange struct {
	ID                     int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID                 string    `gorm:"size:128;not null;index" json:"room_id"`
	BookingDate            string    `gorm:"size:16;not null" json:"booking_date"`
	Hour                   string    `gorm:"size:16;not null" json:"hour"`
	BusinessName           string    `gorm:"size:256;index" json:"business_name"`
	RoomName               string    `gorm:"size:256" json:"room_name"`
	PreviousAvailableSlots int       `gorm:"not null" json:"previous_available_slots"`
	CurrentAvailableSlots  int       `gorm:"not null" json:"current_available_slots"`
	ChangeAmount           int       `gorm:"not null" json:"change_amount"`
	ChangeTimestamp        time.Time `gorm:"not null;index" json:"change_timestamp"`
	ScrapeID               string    `gorm:"size:128" json:"scrape_id"`
}
