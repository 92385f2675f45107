package store

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"escape-analytics-backend/internal/ident"
	"escape-analytics-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	// Ingest stamps and persists a batch of observations under the given
	// policy. Every stored row carries scrapeID. Skipped reports rows dropped
	// by PolicyCheckDuplicates.
	Ingest(ctx context.Context, obs []NewObservation, scrapeID string, policy InsertPolicy) (stored []model.SlotObservation, skipped int, err error)

	// LatestTwo returns the most recent observations of one slot, newest
	// first, at most two rows.
	LatestTwo(ctx context.Context, roomID, bookingDate, hour string) ([]model.SlotObservation, error)

	// InsertChanges appends change records to the change log.
	InsertChanges(ctx context.Context, changes []model.BookingChange) error

	// Changes returns change records matching the filter, ordered ascending
	// by change timestamp.
	Changes(ctx context.Context, filter ChangeFilter) ([]model.BookingChange, error)

	// SlotTimeSeries returns the full observation history of one slot,
	// ordered ascending by scrape timestamp.
	SlotTimeSeries(ctx context.Context, roomID, bookingDate, hour string) ([]SlotPoint, error)

	// LatestScrapeID resolves the scrape-session id of the most recent
	// observation, optionally scoped to a business.
	LatestScrapeID(ctx context.Context, businessName string) (string, error)

	// SlotsByScrape returns every observation stamped with scrapeID,
	// optionally scoped to a business.
	SlotsByScrape(ctx context.Context, scrapeID, businessName string) ([]model.SlotObservation, error)

	// LatestAvailability returns the canonical current-state view: all
	// observations belonging to the most recent scrape session.
	LatestAvailability(ctx context.Context, businessName string) ([]model.SlotObservation, error)

	// BookingVelocity buckets change records within the trailing window by
	// hour of change timestamp.
	BookingVelocity(ctx context.Context, businessName string, window time.Duration, now time.Time) ([]VelocityBucket, error)

	// DB exposes the underlying handle for auxiliary tables (subscriptions).
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db            *gorm.DB
	retryAttempts int
	retryBase     time.Duration
}

// NewGormStore creates a new GORM-backed store. Reads retry attempts times
// with exponential backoff starting at baseDelay.
func NewGormStore(db *gorm.DB, attempts int, baseDelay time.Duration) Store {
	if attempts <= 0 {
		attempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	return &gormStore{db: db, retryAttempts: attempts, retryBase: baseDelay}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// stamp turns an incoming observation into a storable row: derived id, scrape
// timestamp, scrape-session id.
func stamp(o NewObservation, scrapeTS time.Time, scrapeID string) model.SlotObservation {
	id := ident.SlotID(o.RoomID, o.BookingDate, o.Hour, scrapeTS,
		strconv.FormatBool(o.IsAvailable),
		strconv.Itoa(o.AvailableSlots),
		strconv.Itoa(o.TotalCapacity),
		strconv.Itoa(o.BookedCapacity))
	return model.SlotObservation{
		ID:              id,
		RoomID:          o.RoomID,
		BookingDate:     o.BookingDate,
		Hour:            o.Hour,
		BusinessName:    o.BusinessName,
		RoomName:        o.RoomName,
		IsAvailable:     o.IsAvailable,
		AvailableSlots:  o.AvailableSlots,
		TotalCapacity:   o.TotalCapacity,
		BookedCapacity:  o.BookedCapacity,
		ScrapeTimestamp: scrapeTS,
		ScrapeID:        scrapeID,
	}
}

func (s *gormStore) Ingest(ctx context.Context, obs []NewObservation, scrapeID string, policy InsertPolicy) ([]model.SlotObservation, int, error) {
	if len(obs) == 0 {
		return nil, 0, nil
	}
	// The session timestamp embedded in the scrape id keeps stamping
	// deterministic across redeliveries of the same batch; ids only fall back
	// to wall clock for foreign scrape ids.
	scrapeTS, ok := ident.ScrapeTime(scrapeID)
	if !ok {
		scrapeTS = time.Now().UTC()
	}

	rows := make([]model.SlotObservation, 0, len(obs))
	skipped := 0

	switch policy {
	case PolicyInsert:
		for _, o := range obs {
			rows = append(rows, stamp(o, scrapeTS, scrapeID))
		}
	case PolicyUpsert:
		// Ids are deterministic, so an observation repeated within one payload
		// derives the same primary key. Repeats inside one ON CONFLICT
		// statement error on postgres, so they collapse to the last occurrence
		// here (last writer wins, same as across batches).
		idx := make(map[string]int, len(obs))
		for _, o := range obs {
			row := stamp(o, scrapeTS, scrapeID)
			if i, ok := idx[row.ID]; ok {
				rows[i] = row
				continue
			}
			idx[row.ID] = len(rows)
			rows = append(rows, row)
		}
	case PolicyCheckDuplicates:
		// seen covers repeats within the payload itself; deterministic ids
		// make those collide on the primary key just like redeliveries do.
		seen := make(map[string]struct{}, len(obs))
		for _, o := range obs {
			row := stamp(o, scrapeTS, scrapeID)
			if _, dup := seen[row.ID]; dup {
				log.Printf("skipping duplicate slot observation %s", row.ID)
				skipped++
				continue
			}
			seen[row.ID] = struct{}{}
			exists, err := s.slotExists(ctx, row.ID)
			if err != nil {
				// Exhausted retries degrade to "no prior data": the row is
				// treated as new rather than aborting the batch.
				log.Printf("existence check for %s failed, treating as new: %v", row.ID, err)
				exists = false
			}
			if exists {
				log.Printf("skipping duplicate slot observation %s", row.ID)
				skipped++
				continue
			}
			rows = append(rows, row)
		}
	default:
		return nil, 0, fmt.Errorf("unknown insert policy %q", policy)
	}

	if len(rows) == 0 {
		return nil, skipped, nil
	}

	tx := s.db.WithContext(ctx)
	if policy == PolicyUpsert {
		tx = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return nil, skipped, fmt.Errorf("failed to ingest %d slot observations: %w", len(rows), err)
	}
	return rows, skipped, nil
}

func (s *gormStore) slotExists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := s.withRetry(ctx, "slot existence check", func() error {
		return s.db.WithContext(ctx).
			Model(&model.SlotObservation{}).
			Where("id = ?", id).
			Count(&count).Error
	})
	return count > 0, err
}

func (s *gormStore) LatestTwo(ctx context.Context, roomID, bookingDate, hour string) ([]model.SlotObservation, error) {
	var slots []model.SlotObservation
	err := s.withRetry(ctx, "latest-two lookup", func() error {
		slots = slots[:0]
		// id as secondary key keeps ordering stable when two observations
		// share a scrape timestamp.
		return s.db.WithContext(ctx).
			Where("room_id = ? AND booking_date = ? AND hour = ?", roomID, bookingDate, hour).
			Order("scrape_timestamp DESC").
			Order("id DESC").
			Limit(2).
			Find(&slots).Error
	})
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *gormStore) InsertChanges(ctx context.Context, changes []model.BookingChange) error {
	if len(changes) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&changes).Error; err != nil {
		return fmt.Errorf("failed to insert %d booking changes: %w", len(changes), err)
	}
	return nil
}

func (s *gormStore) Changes(ctx context.Context, filter ChangeFilter) ([]model.BookingChange, error) {
	var changes []model.BookingChange
	err := s.withRetry(ctx, "change-log query", func() error {
		changes = changes[:0]
		q := s.db.WithContext(ctx).Model(&model.BookingChange{})
		if filter.RoomID != "" {
			q = q.Where("room_id = ?", filter.RoomID)
		}
		if filter.BusinessName != "" {
			q = q.Where("business_name = ?", filter.BusinessName)
		}
		if !filter.Start.IsZero() {
			q = q.Where("change_timestamp >= ?", filter.Start)
		}
		if !filter.End.IsZero() {
			q = q.Where("change_timestamp <= ?", filter.End)
		}
		return q.Order("change_timestamp ASC").Find(&changes).Error
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func (s *gormStore) SlotTimeSeries(ctx context.Context, roomID, bookingDate, hour string) ([]SlotPoint, error) {
	var points []SlotPoint
	err := s.withRetry(ctx, "slot time-series query", func() error {
		points = points[:0]
		return s.db.WithContext(ctx).
			Model(&model.SlotObservation{}).
			Select("available_slots, scrape_timestamp, scrape_id").
			Where("room_id = ? AND booking_date = ? AND hour = ?", roomID, bookingDate, hour).
			Order("scrape_timestamp ASC").
			Scan(&points).Error
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

func (s *gormStore) LatestScrapeID(ctx context.Context, businessName string) (string, error) {
	var latest []model.SlotObservation
	err := s.withRetry(ctx, "latest-scrape lookup", func() error {
		latest = latest[:0]
		q := s.db.WithContext(ctx).Model(&model.SlotObservation{})
		if businessName != "" {
			q = q.Where("business_name = ?", businessName)
		}
		return q.Select("scrape_id").
			Order("scrape_timestamp DESC").
			Limit(1).
			Find(&latest).Error
	})
	if err != nil {
		return "", err
	}
	if len(latest) == 0 {
		return "", nil
	}
	return latest[0].ScrapeID, nil
}

func (s *gormStore) SlotsByScrape(ctx context.Context, scrapeID, businessName string) ([]model.SlotObservation, error) {
	var slots []model.SlotObservation
	err := s.withRetry(ctx, "slots-by-scrape query", func() error {
		slots = slots[:0]
		q := s.db.WithContext(ctx).Where("scrape_id = ?", scrapeID)
		if businessName != "" {
			q = q.Where("business_name = ?", businessName)
		}
		return q.Find(&slots).Error
	})
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *gormStore) LatestAvailability(ctx context.Context, businessName string) ([]model.SlotObservation, error) {
	scrapeID, err := s.LatestScrapeID(ctx, businessName)
	if err != nil {
		return nil, err
	}
	if scrapeID == "" {
		return nil, nil
	}
	return s.SlotsByScrape(ctx, scrapeID, businessName)
}

func (s *gormStore) BookingVelocity(ctx context.Context, businessName string, window time.Duration, now time.Time) ([]VelocityBucket, error) {
	changes, err := s.Changes(ctx, ChangeFilter{
		BusinessName: businessName,
		Start:        now.Add(-window),
	})
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]*VelocityBucket)
	for _, c := range changes {
		key := c.ChangeTimestamp.UTC().Truncate(time.Hour).Format(time.RFC3339)
		b, ok := buckets[key]
		if !ok {
			b = &VelocityBucket{HourBucket: key}
			buckets[key] = b
		}
		b.TotalChanges++
		if c.ChangeAmount < 0 {
			b.BookingsMade += -c.ChangeAmount
		} else {
			b.Cancellations += c.ChangeAmount
		}
	}

	out := make([]VelocityBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HourBucket < out[j].HourBucket })
	return out, nil
}
