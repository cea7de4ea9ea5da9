package models

import (
	"time"

	"github.com/guregu/null/v5"
)

// TimestampLayout is the display layout for result timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Result is the latest probe outcome recorded for a single target URL.
// URL is the exact string that was submitted and is the primary key.
type Result struct {
	URL          string     `json:"url"`
	ResponseTime null.Float `json:"response_time"` // Null when the last probe failed
	Timestamp    time.Time  `json:"timestamp"`
}

// Failed reports whether the last probe of the target failed.
func (r Result) Failed() bool {
	return !r.ResponseTime.Valid
}

// Truncate normalises a probe time to the precision the store keeps.
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
