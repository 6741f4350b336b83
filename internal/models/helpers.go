package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// isoLayouts are the timestamp layouts the backend has been seen to emit.
// Python's isoformat() omits the zone, so naive layouts are parsed as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Millis is a Unix timestamp in milliseconds. It decodes from a JSON number
// or from an ISO-8601 string.
type Millis int64

// MillisFromTime converts t to Millis.
func MillisFromTime(t time.Time) Millis {
	return Millis(t.UnixMilli())
}

// Time returns the timestamp as a time.Time in UTC.
func (m Millis) Time() time.Time {
	return time.UnixMilli(int64(m)).UTC()
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Millis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseMillis(s)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", data, err)
	}
	*m = Millis(int64(f))
	return nil
}

// ParseMillis parses a timestamp given either as digits (milliseconds) or as
// an ISO-8601 date.
func ParseMillis(s string) (Millis, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Millis(n), nil
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return MillisFromTime(t), nil
		}
	}
	return 0, fmt.Errorf("unrecognized timestamp: %q", s)
}

// FlexString decodes from a JSON string or number. The backend reports the
// manual year either way.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*f = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	default:
		*f = FlexString(data)
	}
	return nil
}

// FormatDate renders a timestamp the way notices show upload dates.
func FormatDate(m Millis) string {
	if m == 0 {
		return "Unknown"
	}
	return m.Time().Format("1/2/2006")
}

// OrUnknown returns s, or "Unknown" when s is blank.
func OrUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
