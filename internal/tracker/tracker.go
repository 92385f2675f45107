// Package tracker derives booking-change records from the snapshot stream: for
// each freshly ingested observation it compares the two most recent snapshots
// of the slot and emits a change record when available capacity moved.
package tracker

import (
	"context"
	"log"

	"escape-analytics-backend/internal/model"
	"escape-analytics-backend/internal/store"
)

// Service runs change detection against the snapshot store.
type Service struct {
	store store.Store
}

// New creates a change-detection service.
func New(s store.Store) *Service {
	return &Service{store: s}
}

// Result summarizes one scrape-processing run. LogErr carries a failed
// change-log write: change logging is best-effort relative to the primary
// snapshot data, so the caller decides whether to surface or just log it.
type Result struct {
	Processed      int
	Changes        []model.BookingChange
	LatestScrapeID string
	LogErr         error
}

// DetectChanges diffs every observation in the batch against its immediate
// predecessor and persists the accumulated change records in one write. The
// batch is expected to be durably stored already, so the latest-two lookup
// sees each observation as its own "current" row. The returned logErr reports
// a failed change-log write; detection itself never fails the batch.
func (t *Service) DetectChanges(ctx context.Context, slots []model.SlotObservation, scrapeID string) (changes []model.BookingChange, logErr error) {
	for _, slot := range slots {
		recent, err := t.store.LatestTwo(ctx, slot.RoomID, slot.BookingDate, slot.Hour)
		if err != nil {
			// Cannot diff this slot; skip it rather than aborting the batch.
			log.Printf("change detection skipped for %s %s %s: %v", slot.RoomID, slot.BookingDate, slot.Hour, err)
			continue
		}
		if len(recent) < 2 {
			// First-ever observation of this slot, nothing to diff against.
			continue
		}

		current, previous := recent[0], recent[1]
		if current.AvailableSlots == previous.AvailableSlots {
			continue
		}

		changes = append(changes, model.BookingChange{
			RoomID:                 slot.RoomID,
			BookingDate:            slot.BookingDate,
			Hour:                   slot.Hour,
			BusinessName:           slot.BusinessName,
			RoomName:               slot.RoomName,
			PreviousAvailableSlots: previous.AvailableSlots,
			CurrentAvailableSlots:  current.AvailableSlots,
			ChangeAmount:           current.AvailableSlots - previous.AvailableSlots,
			ChangeTimestamp:        current.ScrapeTimestamp,
			ScrapeID:               scrapeID,
		})
	}

	if len(changes) > 0 {
		logErr = t.store.InsertChanges(ctx, changes)
	}
	return changes, logErr
}

// ProcessScrape resolves the most recent scrape session (optionally scoped to
// one business) and runs change detection over every observation in it.
func (t *Service) ProcessScrape(ctx context.Context, businessName string) (Result, error) {
	scrapeID, err := t.store.LatestScrapeID(ctx, businessName)
	if err != nil {
		return Result{}, err
	}
	if scrapeID == "" {
		return Result{}, nil
	}

	slots, err := t.store.SlotsByScrape(ctx, scrapeID, businessName)
	if err != nil {
		return Result{}, err
	}

	changes, logErr := t.DetectChanges(ctx, slots, scrapeID)
	return Result{
		Processed:      len(slots),
		Changes:        changes,
		LatestScrapeID: scrapeID,
		LogErr:         logErr,
	}, nil
}
