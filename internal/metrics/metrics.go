// Package metrics computes utilization views over the latest-snapshot state.
package metrics

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"escape-analytics-backend/internal/hours"
	"escape-analytics-backend/internal/model"
	"escape-analytics-backend/internal/store"
)

// RoomMetrics is per-room utilization over the latest snapshot.
type RoomMetrics struct {
	RoomID                string  `json:"room_id"`
	RoomName              string  `json:"room_name"`
	TotalSlots            int     `json:"total_slots"`
	BookedSlots           int     `json:"booked_slots"`
	UtilizationRate       float64 `json:"utilization_rate"`
	AverageAvailableSlots float64 `json:"average_available_slots"`
}

// DailyMetrics is per-date utilization over the latest snapshot.
type DailyMetrics struct {
	Date            string  `json:"date"`
	TotalSlots      int     `json:"total_slots"`
	BookedSlots     int     `json:"booked_slots"`
	UtilizationRate float64 `json:"utilization_rate"`
}

// HourlyUtilization is the peak-hour pattern: utilization bucketed by
// hour-of-day.
type HourlyUtilization struct {
	Hour            int     `json:"hour"`
	TotalSlots      int     `json:"total_slots"`
	BookedSlots     int     `json:"booked_slots"`
	UtilizationRate float64 `json:"utilization_rate"`
}

// Summary is the headline view across every room of a business (or all).
type Summary struct {
	TotalSlots             int     `json:"total_slots"`
	TotalBookings          int     `json:"total_bookings"`
	OverallUtilization     float64 `json:"overall_utilization"`
	AverageRoomUtilization float64 `json:"average_room_utilization"`
	RoomCount              int     `json:"room_count"`
}

// Aggregator computes metrics from the store's latest-availability view,
// filtered down to each business's operating hours.
type Aggregator struct {
	store store.Store
	hours hours.Config
}

// New creates an aggregator. An empty hours config disables operating-hours
// filtering.
func New(s store.Store, h hours.Config) *Aggregator {
	return &Aggregator{store: s, hours: h}
}

func (a *Aggregator) latestSlots(ctx context.Context, businessName string) ([]model.SlotObservation, error) {
	slots, err := a.store.LatestAvailability(ctx, businessName)
	if err != nil {
		return nil, err
	}
	if len(a.hours) == 0 {
		return slots, nil
	}
	filtered := slots[:0]
	for _, s := range slots {
		if a.hours.WithinHours(s.BusinessName, s.BookingDate, s.Hour) {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}

// Rooms returns per-room utilization, sorted by room name.
func (a *Aggregator) Rooms(ctx context.Context, businessName string) ([]RoomMetrics, error) {
	slots, err := a.latestSlots(ctx, businessName)
	if err != nil {
		return nil, err
	}

	byRoom := make(map[string]*RoomMetrics)
	availSums := make(map[string]int)
	availCounts := make(map[string]int)
	for _, s := range slots {
		m, ok := byRoom[s.RoomID]
		if !ok {
			m = &RoomMetrics{RoomID: s.RoomID, RoomName: s.RoomName}
			byRoom[s.RoomID] = m
		}
		m.TotalSlots++
		if !s.IsAvailable {
			m.BookedSlots++
		} else {
			availSums[s.RoomID] += s.AvailableSlots
			availCounts[s.RoomID]++
		}
	}

	out := make([]RoomMetrics, 0, len(byRoom))
	for id, m := range byRoom {
		if m.TotalSlots > 0 {
			m.UtilizationRate = float64(m.BookedSlots) / float64(m.TotalSlots) * 100
		}
		if n := availCounts[id]; n > 0 {
			m.AverageAvailableSlots = float64(availSums[id]) / float64(n)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomName < out[j].RoomName })
	return out, nil
}

// Daily returns per-date utilization, sorted by date.
func (a *Aggregator) Daily(ctx context.Context, businessName string) ([]DailyMetrics, error) {
	slots, err := a.latestSlots(ctx, businessName)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]*DailyMetrics)
	for _, s := range slots {
		m, ok := byDate[s.BookingDate]
		if !ok {
			m = &DailyMetrics{Date: s.BookingDate}
			byDate[s.BookingDate] = m
		}
		m.TotalSlots++
		if !s.IsAvailable {
			m.BookedSlots++
		}
	}

	out := make([]DailyMetrics, 0, len(byDate))
	for _, m := range byDate {
		if m.TotalSlots > 0 {
			m.UtilizationRate = float64(m.BookedSlots) / float64(m.TotalSlots) * 100
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// Hourly returns utilization bucketed by hour-of-day, sorted by hour.
func (a *Aggregator) Hourly(ctx context.Context, businessName string) ([]HourlyUtilization, error) {
	slots, err := a.latestSlots(ctx, businessName)
	if err != nil {
		return nil, err
	}

	byHour := make(map[int]*HourlyUtilization)
	for _, s := range slots {
		h, err := strconv.Atoi(strings.SplitN(s.Hour, ":", 2)[0])
		if err != nil {
			continue
		}
		m, ok := byHour[h]
		if !ok {
			m = &HourlyUtilization{Hour: h}
			byHour[h] = m
		}
		m.TotalSlots++
		if !s.IsAvailable {
			m.BookedSlots++
		}
	}

	out := make([]HourlyUtilization, 0, len(byHour))
	for _, m := range byHour {
		if m.TotalSlots > 0 {
			m.UtilizationRate = float64(m.BookedSlots) / float64(m.TotalSlots) * 100
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out, nil
}

// Business returns the headline summary for a business (or all businesses when
// empty).
func (a *Aggregator) Business(ctx context.Context, businessName string) (Summary, error) {
	rooms, err := a.Rooms(ctx, businessName)
	if err != nil {
		return Summary{}, err
	}

	var s Summary
	var utilSum float64
	for _, r := range rooms {
		s.TotalSlots += r.TotalSlots
		s.TotalBookings += r.BookedSlots
		utilSum += r.UtilizationRate
	}
	s.RoomCount = len(rooms)
	if s.TotalSlots > 0 {
		s.OverallUtilization = float64(s.TotalBookings) / float64(s.TotalSlots) * 100
	}
	if s.RoomCount > 0 {
		s.AverageRoomUtilization = utilSum / float64(s.RoomCount)
	}
	return s, nil
}
