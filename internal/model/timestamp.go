package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNaiveTimestamp is returned for a datetime without timezone information.
	ErrNaiveTimestamp = errors.New("datetime must be timezone aware")
	// ErrInvalidTimestamp is returned for text that is not an ISO 8601 datetime.
	ErrInvalidTimestamp = errors.New("invalid datetime")
)

// Zoned layouts, most common first. All of them require an offset or Z.
var zonedLayouts = []string{
	"2006-01-02T15:04:05.000Z07:00",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
}

// Layouts that parse but carry no zone.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Timestamp is an ISO 8601 datetime with an explicit UTC offset. A decoded
// Timestamp keeps its original text so it re-encodes unchanged.
type Timestamp struct {
	t    time.Time
	text string
}

// NewTimestamp wraps t. Go times always carry a location, so the result is
// rendered with its offset.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t: t, text: t.Format(time.RFC3339Nano)}
}

// ParseTimestamp parses an ISO 8601 datetime, rejecting ones without an offset.
func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{t: t, text: s}, nil
		}
	}
	for _, layout := range naiveLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return Timestamp{}, fmt.Errorf("%w: %q", ErrNaiveTimestamp, s)
		}
	}
	return Timestamp{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

func (ts Timestamp) IsZero() bool    { return ts.text == "" }
func (ts Timestamp) Time() time.Time { return ts.t }
func (ts Timestamp) String() string  { return ts.text }

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return nil, fmt.Errorf("%w: unset timestamp", ErrInvalidTimestamp)
	}
	return marshalCompact(ts.text)
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTimestamp, data)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}
