package store

import "time"

// InsertPolicy selects how a batch of observations is persisted.
type InsertPolicy string

const (
	// PolicyInsert inserts the whole batch as-is; any store rejection (for
	// example a uniqueness violation) fails the batch.
	PolicyInsert InsertPolicy = "insert"
	// PolicyCheckDuplicates checks each candidate id for prior existence and
	// silently skips rows that are already stored.
	PolicyCheckDuplicates InsertPolicy = "check_duplicates"
	// PolicyUpsert merges on conflict by id: new ids insert, colliding ids
	// overwrite in place. The only policy that can mutate a stored row.
	PolicyUpsert InsertPolicy = "upsert"
)

// NewObservation is a scraped slot record as submitted by the external
// scraper, before the ingestion engine stamps id, scrape timestamp, and
// scrape-session id.
type NewObservation struct {
	RoomID         string `json:"room_id"`
	BookingDate    string `json:"booking_date"`
	Hour           string `json:"hour"`
	BusinessName   string `json:"business_name"`
	RoomName       string `json:"room_name"`
	IsAvailable    bool   `json:"is_available"`
	AvailableSlots int    `json:"available_slots"`
	TotalCapacity  int    `json:"total_capacity"`
	BookedCapacity int    `json:"booked_capacity"`
}

// ChangeFilter narrows a change-log query. Zero values mean "no constraint".
type ChangeFilter struct {
	RoomID       string
	BusinessName string
	Start        time.Time
	End          time.Time
}

// SlotPoint is one point of a slot's availability time series.
type SlotPoint struct {
	AvailableSlots  int       `json:"available_slots"`
	ScrapeTimestamp time.Time `json:"scrape_timestamp"`
	ScrapeID        string    `json:"scrape_id"`
}

// VelocityBucket aggregates change records for one hour of wall-clock time.
// Negative change amounts count as bookings made, positive ones as
// cancellations.
type VelocityBucket struct {
	HourBucket    string `json:"hour_bucket"`
	TotalChanges  int    `json:"total_changes"`
	BookingsMade  int    `json:"bookings_made"`
	Cancellations int    `json:"cancellations"`
}
