package types

import (
	"encoding/json"
	"strings"
	"time"
)

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// DateTime wraps a time.Time struct, allowing for improved dateTime JSON compatibility.
// Unparsable input decodes to the zero time instead of failing the whole payload.
type DateTime struct {
	time.Time
}

// NewDateTime Creates a new DateTime struct, embedding a time.Time struct.
func NewDateTime(time time.Time) *DateTime {
	return &DateTime{Time: time}
}

func (dt *DateTime) UnmarshalJSON(input []byte) error {
	var value string
	if err := json.Unmarshal(input, &value); err != nil {
		dt.Time = time.Time{}
		return nil
	}
	parsed, ok := ParseTime(value)
	if !ok {
		dt.Time = time.Time{}
		return nil
	}
	dt.Time = parsed
	return nil
}

func (dt *DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(FormatTime(dt.Time))
}

// OrNow returns the wrapped time, or the current time when the value is missing or zero.
func (dt *DateTime) OrNow() time.Time {
	if dt == nil || dt.IsZero() {
		return time.Now()
	}
	return dt.Time
}

// ParseTime accepts RFC 3339 and a few common ISO 8601 variants.
func ParseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
