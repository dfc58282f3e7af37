package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayBucketUsesUTC(t *testing.T) {
	tehran := time.FixedZone("IRST", 3*3600+1800)
	// 01:00 local on the 2nd is still the 1st in UTC.
	ts := time.Date(2025, 3, 2, 1, 0, 0, 0, tehran)
	assert.Equal(t, "2025-03-01", DayBucket(ts))
}

func TestNextDay(t *testing.T) {
	ts := time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), NextDay(ts))
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2025-05-24")
	require.NoError(t, err)
	assert.Equal(t, "2025-05-24", DayBucket(d))

	_, err = ParseDay("24/05/2025")
	assert.Error(t, err)
}
