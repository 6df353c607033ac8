package db

import (
	"database/sql"
	"time"
)

// TimeFormat is how timestamps are stored.
const TimeFormat = "2006-01-02 15:04:05"

// ParseTime parses a stored timestamp as UTC. Unparsable values yield the
// zero time.
func ParseTime(s string) time.Time {
	t, _ := time.ParseInLocation(TimeFormat, s, time.UTC)
	return t
}

// ParseNullTime parses a nullable time string from SQLite
func ParseNullTime(ns sql.NullString) time.Time {
	if !ns.Valid || ns.String == "" {
		return time.Time{}
	}
	return ParseTime(ns.String)
}

// TimeString formats t for storage, using the current time if zero.
func TimeString(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(TimeFormat)
}
