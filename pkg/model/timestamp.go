package model

import "time"

// wireTimeLayout is the timestamp layout used on both wire encodings:
// UTC with microsecond precision and no zone suffix.
const wireTimeLayout = "2006-01-02T15:04:05.000000"

// Timestamp formats t as a protocol timestamp.
func Timestamp(t time.Time) string {
	return t.UTC().Format(wireTimeLayout)
}

// Now returns the current time as a protocol timestamp.
func Now() string {
	return Timestamp(time.Now())
}

// ParseTimestamp parses a protocol timestamp. Peers are not required to
// send parseable timestamps; callers treating them as opaque strings lose
// nothing.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(wireTimeLayout, s)
}
