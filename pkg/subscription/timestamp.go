package subscription

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Timestamp is a point in time as it was stored: either epoch seconds or ISO-8601 text.
// Parsing is deferred to Time so callers decide what a malformed value means.
type Timestamp string

// TimestampOf formats t in the canonical RFC 3339 form.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp(t.UTC().Format(time.RFC3339Nano))
}

// EpochTimestamp formats t as epoch seconds.
func EpochTimestamp(t time.Time) Timestamp {
	return Timestamp(strconv.FormatInt(t.Unix(), 10))
}

// Time parses the stored value.
func (t Timestamp) Time() (time.Time, error) {
	return ParseTimestamp(string(t))
}

// IsZero reports whether no value was stored.
func (t Timestamp) IsZero() bool {
	return strings.TrimSpace(string(t)) == ""
}

// isoLayouts are tried in order; zone-less layouts are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseTimestamp accepts epoch seconds (integer or fractional; values that only make
// sense as milliseconds are scaled down) and the ISO-8601 variants seen in stored rows.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrEmptyTimestamp
	}

	if epoch, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(epoch) && !math.IsInf(epoch, 0) {
		if epoch >= 1e12 {
			epoch /= 1000
		}
		sec := int64(epoch)
		nsec := int64((epoch - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC(), nil
	}

	for _, layout := range isoLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}

	return time.Time{}, errors.Join(ErrInvalidTimestamp, fmt.Errorf("value %q", raw))
}
