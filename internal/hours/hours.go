// Package hours provides business-name normalization and operating-hours
// lookups. Scraped business names are free text ("The Exit Games\t",
// "iEscape Rooms!"); normalization strips the noise so config keys and scraped
// rows can be matched without fuzzy comparison.
package hours

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	spaceRe  = regexp.MustCompile(`\s+`)
	fillerRe = regexp.MustCompile(`\b(?:escape\s+games?|escape\s+rooms?|escape|games?|rooms?)\b`)
)

// Normalize reduces a business name to its comparable core: trimmed,
// lower-cased, exclamation marks and "escape room/game" filler words removed,
// runs of whitespace collapsed.
func Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, "\t", "")
	s = strings.ReplaceAll(s, "!", "")
	s = fillerRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// DayHours is one day's opening window. A nil *DayHours in a Schedule means
// closed that day.
type DayHours struct {
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

// Schedule maps lowercase weekday names ("monday" ... "sunday") to opening
// windows.
type Schedule map[string]*DayHours

// Config maps normalized business names to their weekly schedules.
type Config map[string]Schedule

// Lookup returns the schedule for a business name (raw or normalized).
func (c Config) Lookup(businessName string) (Schedule, bool) {
	s, ok := c[Normalize(businessName)]
	return s, ok
}

// WithinHours reports whether the slot at bookingDate ("2006-01-02") and hour
// ("15:04:05" or "15:04") falls inside the business's operating window. Slots
// for businesses without a configured schedule are always included.
func (c Config) WithinHours(businessName, bookingDate, hour string) bool {
	sched, ok := c.Lookup(businessName)
	if !ok {
		return true
	}

	date, err := time.Parse("2006-01-02", bookingDate)
	if err != nil {
		return true
	}
	day := strings.ToLower(date.Weekday().String())

	window, ok := sched[day]
	if !ok || window == nil {
		return false
	}

	slot := toMinutes(hour)
	openMin := toMinutes(window.Open)
	closeMin := toMinutes(window.Close)
	if slot < 0 || openMin < 0 || closeMin < 0 {
		return true
	}
	return slot >= openMin && slot <= closeMin
}

// toMinutes converts "HH:MM" (or "HH:MM:SS") to minutes since midnight.
// "24:00" is treated as end of day. Returns -1 on malformed input.
func toMinutes(t string) int {
	parts := strings.Split(t, ":")
	if len(parts) < 2 {
		return -1
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return -1
	}
	return h*60 + m
}
