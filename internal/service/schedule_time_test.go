package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayIndex(t *testing.T) {
	assert.Equal(t, 0, dayIndex("Sunday"))
	assert.Equal(t, 1, dayIndex("monday"))
	assert.Equal(t, 3, dayIndex("  WEDNESDAY "))
	assert.Equal(t, 6, dayIndex("saturday"))
	assert.Equal(t, -1, dayIndex("funday"))
	assert.Equal(t, -1, dayIndex(""))
}

func TestParseClock(t *testing.T) {
	hour, minute, err := parseClock("18:00")
	require.NoError(t, err)
	assert.Equal(t, 18, hour)
	assert.Equal(t, 0, minute)

	hour, minute, err = parseClock(" 07:45 ")
	require.NoError(t, err)
	assert.Equal(t, 7, hour)
	assert.Equal(t, 45, minute)

	_, _, err = parseClock("1800")
	assert.Error(t, err)
	_, _, err = parseClock("25:00")
	assert.Error(t, err)
	_, _, err = parseClock("18:61")
	assert.Error(t, err)
}

func TestCombineDateTime(t *testing.T) {
	date := time.Date(2026, time.March, 2, 9, 30, 12, 99, time.Local)
	got := combineDateTime(date, 18, 0)
	assert.Equal(t, time.Date(2026, time.March, 2, 18, 0, 0, 0, time.Local), got)
}

func TestDateOnly(t *testing.T) {
	ts := time.Date(2026, time.March, 2, 18, 45, 9, 1, time.Local)
	assert.Equal(t, time.Date(2026, time.March, 2, 0, 0, 0, 0, time.Local), dateOnly(ts))
}
