package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var weekdayIndex = map[string]int{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

// dayIndex maps a weekday name to 0..6 with Sunday as 0. Matching is
// case-insensitive and ignores surrounding whitespace. Returns -1 for
// unrecognized names; callers skip the slot rather than fail.
func dayIndex(name string) int {
	idx, ok := weekdayIndex[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return -1
	}
	return idx
}

// parseClock splits an "HH:MM" string into hour and minute.
func parseClock(value string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed clock value %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("malformed hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("malformed minute in %q", value)
	}
	return hour, minute, nil
}

// combineDateTime returns the wall-clock instant at hour:minute on the
// given date. Times are naive local clock, no timezone conversion.
func combineDateTime(date time.Time, hour, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location())
}

// dateOnly truncates a timestamp to midnight on the same calendar day.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
