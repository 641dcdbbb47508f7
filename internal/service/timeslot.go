package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"

	openingMinute    = 8 * 60
	closingMinute    = 17 * 60
	lunchStartMinute = 13 * 60
	lunchEndMinute   = 14 * 60
)

// hourGrid lists the start hour of every one-hour teaching block. 13:00 is lunch.
var hourGrid = []int{8, 9, 10, 11, 12, 14, 15, 16}

var weekdayNames = [...]string{"Dimanche", "Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi", "Samedi"}

// parseClock returns minutes since midnight. Only the HH:MM part is read;
// a leading date ("2024-01-08 08:00:00") and trailing seconds are ignored.
func parseClock(value string) (int, error) {
	raw := strings.TrimSpace(value)
	if idx := strings.LastIndexAny(raw, " T"); idx >= 0 {
		raw = raw[idx+1:]
	}
	parts := strings.Split(raw, ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hours*60 + minutes, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d:00", minutes/60, minutes%60)
}

// normalizeClock rewrites a time of day as HH:MM:SS.
func normalizeClock(value string) (string, error) {
	m, err := parseClock(value)
	if err != nil {
		return "", err
	}
	return formatClock(m), nil
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", value)
	}
	return t, nil
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func weekdayName(t time.Time) string {
	return weekdayNames[t.Weekday()]
}

// mondayOf returns the Monday of the ISO week containing t.
func mondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

// overlaps is the half-open interval test: touching endpoints do not overlap.
func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && aEnd > bStart
}

// datesIntersect compares YYYY-MM-DD strings, which order lexically.
func datesIntersect(aStart, aEnd, bStart, bEnd string) bool {
	return aStart <= bEnd && aEnd >= bStart
}

// durationHours returns end-start in hours, or 0 when the window is empty or unparsable.
func durationHours(start, end string) float64 {
	s, err := parseClock(start)
	if err != nil {
		return 0
	}
	e, err := parseClock(end)
	if err != nil {
		return 0
	}
	if e <= s {
		return 0
	}
	return float64(e-s) / 60
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// slotRun places a run of duration one-hour blocks starting at grid index
// offset. A run that would cross lunch restarts at 14:00; runs never end
// after closing time.
func slotRun(offset, duration int) (start, end int, ok bool) {
	if duration <= 0 {
		return 0, 0, false
	}
	hour := hourGrid[((offset%len(hourGrid))+len(hourGrid))%len(hourGrid)]
	if hour < 13 && hour+duration > 13 {
		hour = 14
	}
	if hour+duration > 17 {
		return 0, 0, false
	}
	return hour * 60, (hour + duration) * 60, true
}

// checkOpeningPolicy reports opening-hours and lunch violations of a window.
func checkOpeningPolicy(start, end int) (outside, lunch bool) {
	outside = start < openingMinute || end > closingMinute
	lunch = overlaps(start, end, lunchStartMinute, lunchEndMinute)
	return outside, lunch
}
