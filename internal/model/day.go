package model

import "time"

const dayLayout = "2006-01-02"

// DayBucket returns the UTC calendar day key used to partition quota counters.
func DayBucket(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// NextDay returns the UTC midnight that closes t's bucket.
func NextDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD day in UTC.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(dayLayout, s, time.UTC)
}
