package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeFilter holds optional time bounds for session listings.
type TimeFilter struct {
	Since *time.Time
	Until *time.Time
}

// ParseTimeFilter parses since/until strings into a TimeFilter.
// Returns nil if both are empty.
func ParseTimeFilter(sinceStr, untilStr string) (*TimeFilter, error) {
	if sinceStr == "" && untilStr == "" {
		return nil, nil
	}

	tf := &TimeFilter{}

	if sinceStr != "" {
		t, err := parseTimeArg(sinceStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --since value %q: %w", sinceStr, err)
		}
		tf.Since = &t
	}

	if untilStr != "" {
		t, err := parseTimeArg(untilStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --until value %q: %w", untilStr, err)
		}
		tf.Until = &t
	}

	return tf, nil
}

// Match reports whether a session timestamp falls within the bounds.
// A nil filter matches everything; an unparseable timestamp matches only a nil filter.
func (tf *TimeFilter) Match(ts string) bool {
	if tf == nil {
		return true
	}
	t, ok := ParseTimestamp(ts)
	if !ok {
		return false
	}
	if tf.Since != nil && t.Before(*tf.Since) {
		return false
	}
	if tf.Until != nil && t.After(*tf.Until) {
		return false
	}
	return true
}

// timestampLayouts are the forms session timestamps take on disk: RFC 3339 from
// transcripts, zone-less local time for checkpoint modification times.
var timestampLayouts = []string{
	time.RFC3339Nano,
	CheckpointLayout,
	checkpointSecondsLayout,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CheckpointLayout formats a checkpoint file's modification time with a fixed
// six-digit fraction.
const CheckpointLayout = "2006-01-02T15:04:05.000000"

const checkpointSecondsLayout = "2006-01-02T15:04:05"

// FormatCheckpoint renders a modification time in local time with microsecond
// precision. The fraction is left off when it is zero.
func FormatCheckpoint(t time.Time) string {
	t = t.Local()
	if t.Nanosecond()/int(time.Microsecond) == 0 {
		return t.Format(checkpointSecondsLayout)
	}
	return t.Format(CheckpointLayout)
}

// ParseTimestamp parses a session timestamp. Zone-less forms are read as local time.
func ParseTimestamp(ts string) (time.Time, bool) {
	if ts == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, ts, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseTimeArg tries to parse a time argument as a relative duration (e.g. "2h", "1d"),
// then falls back to absolute timestamp formats.
func parseTimeArg(s string) (time.Time, error) {
	if d, ok := parseRelativeDuration(s); ok {
		return time.Now().Add(-d), nil
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04",
		"2006-01-02",
	}

	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("expected relative duration (30m, 2h, 1d, 1w) or timestamp (2006-01-02, 2006-01-02T15:04, RFC3339)")
}

// parseRelativeDuration handles suffixes: m (minutes), h (hours), d (days), w (weeks).
func parseRelativeDuration(s string) (time.Duration, bool) {
	if len(s) < 2 {
		return 0, false
	}

	suffix := s[len(s)-1]
	numStr := strings.TrimSpace(s[:len(s)-1])

	n, err := strconv.Atoi(numStr)
	if err != nil || n <= 0 {
		return 0, false
	}

	switch suffix {
	case 'm':
		return time.Duration(n) * time.Minute, true
	case 'h':
		return time.Duration(n) * time.Hour, true
	case 'd':
		return time.Duration(n) * 24 * time.Hour, true
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}
