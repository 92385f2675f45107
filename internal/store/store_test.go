package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"escape-analytics-backend/internal/ident"
	"escape-analytics-backend/internal/model"
)

// newSQLiteStore opens a per-test in-memory database with the full schema.
func newSQLiteStore(t *testing.T) Store {
	t.Helper()

	// One shared in-memory database per test, isolated between tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.SlotObservation{}, &model.BookingChange{}))

	return NewGormStore(db, 2, time.Millisecond)
}

// newMockStore creates a sqlmock-backed store for error-path tests.
func newMockStore(t *testing.T) (Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return NewGormStore(gormDB, 3, time.Millisecond), mock
}

func sampleBatch() []NewObservation {
	return []NewObservation{
		{
			RoomID:         "A1",
			BookingDate:    "2025-06-01",
			Hour:           "10:00:00",
			BusinessName:   "The Exit Games",
			RoomName:       "The Vault",
			IsAvailable:    true,
			AvailableSlots: 4,
			TotalCapacity:  6,
			BookedCapacity: 2,
		},
		{
			RoomID:         "A1",
			BookingDate:    "2025-06-01",
			Hour:           "12:00:00",
			BusinessName:   "The Exit Games",
			RoomName:       "The Vault",
			IsAvailable:    false,
			AvailableSlots: 0,
			TotalCapacity:  6,
			BookedCapacity: 6,
		},
	}
}

func TestIngestStampsRows(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	sessionTime := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	scrapeID := ident.ScrapeID(sessionTime)

	stored, skipped, err := s.Ingest(ctx, sampleBatch(), scrapeID, PolicyInsert)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, stored, 2)

	for _, row := range stored {
		assert.NotEmpty(t, row.ID)
		assert.Equal(t, scrapeID, row.ScrapeID)
		assert.Equal(t, sessionTime, row.ScrapeTimestamp.UTC(),
			"rows must be stamped with the session timestamp carried by the scrape id")
	}
	assert.NotEqual(t, stored[0].ID, stored[1].ID)
}

func TestIngestCheckDuplicatesIsIdempotent(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	scrapeID := ident.ScrapeID(time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC))

	stored, skipped, err := s.Ingest(ctx, sampleBatch(), scrapeID, PolicyCheckDuplicates)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Zero(t, skipped)

	// Redelivery of the same batch under the same session id is a no-op.
	stored, skipped, err = s.Ingest(ctx, sampleBatch(), scrapeID, PolicyCheckDuplicates)
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Equal(t, 2, skipped)

	// A later session stores the batch again as fresh snapshots.
	laterID := ident.ScrapeID(time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC))
	stored, skipped, err = s.Ingest(ctx, sampleBatch(), laterID, PolicyCheckDuplicates)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Zero(t, skipped)
}

func TestIngestCheckDuplicatesSkipsRepeatsWithinBatch(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	scrapeID := ident.ScrapeID(time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC))

	// The scraper occasionally emits the same slot twice in one payload; the
	// repeats derive the same id and must be absorbed, not error the batch.
	obs := sampleBatch()[:1]
	batch := append(obs, obs[0], obs[0])

	stored, skipped, err := s.Ingest(ctx, batch, scrapeID, PolicyCheckDuplicates)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	assert.Equal(t, 2, skipped)

	rows, err := s.SlotsByScrape(ctx, scrapeID, "")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestIngestUpsertCollapsesRepeatsWithinBatch(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	scrapeID := ident.ScrapeID(time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC))

	obs := sampleBatch()[:1]
	batch := append(obs, obs[0])

	stored, skipped, err := s.Ingest(ctx, batch, scrapeID, PolicyUpsert)
	require.NoError(t, err)
	assert.Len(t, stored, 1, "in-batch repeats collapse to the last occurrence")
	assert.Zero(t, skipped)

	rows, err := s.SlotsByScrape(ctx, scrapeID, "")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestIngestUpsertOverwritesInPlace(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	scrapeID := ident.ScrapeID(time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC))

	first, _, err := s.Ingest(ctx, sampleBatch(), scrapeID, PolicyUpsert)
	require.NoError(t, err)

	// Identical content under the same session re-derives the same ids, so
	// the upsert converges instead of growing the table.
	second, _, err := s.Ingest(ctx, sampleBatch(), scrapeID, PolicyUpsert)
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, second[0].ID)

	rows, err := s.SlotsByScrape(ctx, scrapeID, "")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestIngestUnknownPolicy(t *testing.T) {
	s := newSQLiteStore(t)

	_, _, err := s.Ingest(context.Background(), sampleBatch(), "scrape-x", InsertPolicy("replace"))
	assert.Error(t, err)
}

func TestIngestEmptyBatch(t *testing.T) {
	s := newSQLiteStore(t)

	stored, skipped, err := s.Ingest(context.Background(), nil, "scrape-x", PolicyInsert)
	assert.NoError(t, err)
	assert.Empty(t, stored)
	assert.Zero(t, skipped)
}

func TestLatestTwoOrdering(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	obs := []NewObservation{{
		RoomID:         "A1",
		BookingDate:    "2025-06-01",
		Hour:           "10:00:00",
		BusinessName:   "The Exit Games",
		IsAvailable:    true,
		AvailableSlots: 4,
	}}

	older := ident.ScrapeID(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	_, _, err := s.Ingest(ctx, obs, older, PolicyInsert)
	require.NoError(t, err)

	obs[0].AvailableSlots = 2
	newer := ident.ScrapeID(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	_, _, err = s.Ingest(ctx, obs, newer, PolicyInsert)
	require.NoError(t, err)

	recent, err := s.LatestTwo(ctx, "A1", "2025-06-01", "10:00:00")
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 2, recent[0].AvailableSlots, "newest snapshot first")
	assert.Equal(t, 4, recent[1].AvailableSlots)
	assert.Equal(t, newer, recent[0].ScrapeID)
	assert.Equal(t, older, recent[1].ScrapeID)
}

func TestChangesFilter(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	err := s.InsertChanges(ctx, []model.BookingChange{
		{RoomID: "A1", BusinessName: "exit", ChangeAmount: -2, ChangeTimestamp: base},
		{RoomID: "A2", BusinessName: "exit", ChangeAmount: 1, ChangeTimestamp: base.Add(time.Hour)},
		{RoomID: "A1", BusinessName: "other", ChangeAmount: -1, ChangeTimestamp: base.Add(2 * time.Hour)},
	})
	require.NoError(t, err)

	all, err := s.Changes(ctx, ChangeFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byRoom, err := s.Changes(ctx, ChangeFilter{RoomID: "A1"})
	require.NoError(t, err)
	assert.Len(t, byRoom, 2)

	byBusiness, err := s.Changes(ctx, ChangeFilter{BusinessName: "exit"})
	require.NoError(t, err)
	assert.Len(t, byBusiness, 2)

	windowed, err := s.Changes(ctx, ChangeFilter{
		Start: base.Add(30 * time.Minute),
		End:   base.Add(90 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "A2", windowed[0].RoomID)
}

func TestSlotTimeSeries(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	obs := []NewObservation{{
		RoomID:         "A1",
		BookingDate:    "2025-06-01",
		Hour:           "10:00:00",
		AvailableSlots: 4,
	}}
	for i, avail := range []int{4, 3, 1} {
		obs[0].AvailableSlots = avail
		id := ident.ScrapeID(time.Date(2025, 6, 1, 9+i, 0, 0, 0, time.UTC))
		_, _, err := s.Ingest(ctx, obs, id, PolicyInsert)
		require.NoError(t, err)
	}

	points, err := s.SlotTimeSeries(ctx, "A1", "2025-06-01", "10:00:00")
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 4, points[0].AvailableSlots)
	assert.Equal(t, 1, points[2].AvailableSlots, "history runs oldest to newest")
}

func TestLatestAvailability(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	older := ident.ScrapeID(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	_, _, err := s.Ingest(ctx, sampleBatch(), older, PolicyInsert)
	require.NoError(t, err)

	batch := sampleBatch()
	batch[0].AvailableSlots = 1
	newer := ident.ScrapeID(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	_, _, err = s.Ingest(ctx, batch, newer, PolicyInsert)
	require.NoError(t, err)

	latest, err := s.LatestAvailability(ctx, "")
	require.NoError(t, err)
	require.Len(t, latest, 2, "only the most recent session is the current state")
	for _, row := range latest {
		assert.Equal(t, newer, row.ScrapeID)
	}
}

func TestLatestScrapeIDEmptyStore(t *testing.T) {
	s := newSQLiteStore(t)

	id, err := s.LatestScrapeID(context.Background(), "")
	assert.NoError(t, err)
	assert.Empty(t, id)
}

func TestBookingVelocity(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	err := s.InsertChanges(ctx, []model.BookingChange{
		// Two bookings and a cancellation inside the window.
		{RoomID: "A1", ChangeAmount: -2, ChangeTimestamp: now.Add(-30 * time.Minute)},
		{RoomID: "A2", ChangeAmount: -1, ChangeTimestamp: now.Add(-45 * time.Minute)},
		{RoomID: "A1", ChangeAmount: 1, ChangeTimestamp: now.Add(-90 * time.Minute)},
		// Outside the window, must be ignored.
		{RoomID: "A1", ChangeAmount: -5, ChangeTimestamp: now.Add(-48 * time.Hour)},
	})
	require.NoError(t, err)

	buckets, err := s.BookingVelocity(ctx, "", 24*time.Hour, now)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	assert.Equal(t, "2025-06-01T10:00:00Z", buckets[0].HourBucket)
	assert.Equal(t, 1, buckets[0].TotalChanges)
	assert.Equal(t, 1, buckets[0].Cancellations)

	assert.Equal(t, "2025-06-01T11:00:00Z", buckets[1].HourBucket)
	assert.Equal(t, 2, buckets[1].TotalChanges)
	assert.Equal(t, 3, buckets[1].BookingsMade)
}

func TestLatestTwoRetriesTransientFailure(t *testing.T) {
	s, mock := newMockStore(t)

	selectRe := regexp.QuoteMeta(`SELECT * FROM "slot_observations"`)
	mock.ExpectQuery(selectRe).WillReturnError(errors.New("connection reset"))
	mock.ExpectQuery(selectRe).
		WillReturnRows(sqlmock.NewRows([]string{"id", "room_id", "available_slots"}).
			AddRow("a1_20250601_100000_x", "A1", 3))

	recent, err := s.LatestTwo(context.Background(), "A1", "2025-06-01", "10:00:00")
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 3, recent[0].AvailableSlots)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestTwoExhaustsRetries(t *testing.T) {
	s, mock := newMockStore(t)

	selectRe := regexp.QuoteMeta(`SELECT * FROM "slot_observations"`)
	for i := 0; i < 3; i++ {
		mock.ExpectQuery(selectRe).WillReturnError(errors.New("connection reset"))
	}

	_, err := s.LatestTwo(context.Background(), "A1", "2025-06-01", "10:00:00")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestDuplicateCheckDegradesOnReadFailure(t *testing.T) {
	s, mock := newMockStore(t)

	countRe := regexp.QuoteMeta(`SELECT count(*) FROM "slot_observations"`)
	for i := 0; i < 3; i++ {
		mock.ExpectQuery(countRe).WillReturnError(errors.New("connection reset"))
	}
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "slot_observations"`)).
		WithArgs(anyArgs(12)...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	obs := sampleBatch()[:1]
	scrapeID := ident.ScrapeID(time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC))

	// The existence check never auto-fails the batch; the row is treated as new.
	stored, skipped, err := s.Ingest(context.Background(), obs, scrapeID, PolicyCheckDuplicates)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	assert.Zero(t, skipped)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestWriteFailurePropagates(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "slot_observations"`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, _, err := s.Ingest(context.Background(), sampleBatch(), "scrape-x", PolicyInsert)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ingest")

	assert.NoError(t, mock.ExpectationsWereMet())
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = Any{}
	}
	return args
}
