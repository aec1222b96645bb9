// Package timeslot turns client-supplied timestamps into canonical booking
// slots.  A slot is a UTC instant aligned to a whole multiple of the slot
// size (in minutes) past midnight, with seconds and sub-seconds zeroed.
// Every ingress point that compares booking times goes through Normalize so
// that two requests for "the same slot" always compare equal.
package timeslot

import (
	"errors"
	"strings"
	"time"
)

// StorageLayout is the zone-less UTC form written to the store.  It matches
// the DATETIME text format used by both MySQL and SQLite.
const StorageLayout = "2006-01-02 15:04:05"

// APILayout is the external form: UTC, second precision, explicit Z marker.
const APILayout = "2006-01-02T15:04:05Z"

// DayLayout is the calendar-day form accepted by the listing endpoint.
const DayLayout = "2006-01-02"

// ErrInvalidTimestamp is returned when the input is not an absolute date and
// time.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// zoned layouts carry an explicit offset or a Z marker.
var zoned = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04Z07:00",
}

// naive layouts have no zone and are read as UTC.  time.Parse returns UTC
// for layouts without zone information, so no local offset is ever applied.
var naive = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	StorageLayout,
	"2006-01-02 15:04",
}

// Slot is a canonical booking slot.  The zero value is not a valid slot.
type Slot struct {
	t time.Time
}

// ParseTimestamp parses raw as an absolute instant and returns it in UTC.
// Fractional seconds are accepted on any layout that has a seconds field.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrInvalidTimestamp
	}
	for _, layout := range zoned {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naive {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidTimestamp
}

// Normalize parses raw and floors it to the slot grid.  A non-positive
// slotMinutes is treated as 1.
func Normalize(raw string, slotMinutes int) (Slot, error) {
	t, err := ParseTimestamp(raw)
	if err != nil {
		return Slot{}, err
	}
	return Floor(t, slotMinutes), nil
}

// Floor aligns t (converted to UTC) down to the slot grid.
func Floor(t time.Time, slotMinutes int) Slot {
	if slotMinutes <= 0 {
		slotMinutes = 1
	}
	u := t.UTC()
	total := u.Hour()*60 + u.Minute()
	floored := total / slotMinutes * slotMinutes
	return Slot{t: time.Date(u.Year(), u.Month(), u.Day(), floored/60, floored%60, 0, 0, time.UTC)}
}

// Parse reads a slot back from its external (APILayout) or storage
// (StorageLayout) form.  It does not re-align; values produced by Slot.String
// or Slot.Storage round-trip exactly.
func Parse(s string) (Slot, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(APILayout, s); err == nil {
		return Slot{t: t.UTC()}, nil
	}
	if t, err := time.Parse(StorageLayout, s); err == nil {
		return Slot{t: t.UTC()}, nil
	}
	return Slot{}, ErrInvalidTimestamp
}

// FromStored wraps a slot value read back from the store.
func FromStored(t time.Time) Slot { return Slot{t: t.UTC()} }

// Time returns the slot instant in UTC.
func (s Slot) Time() time.Time { return s.t }

// IsZero reports whether s is the zero Slot.
func (s Slot) IsZero() bool { return s.t.IsZero() }

// Equal reports whether both slots denote the same instant.
func (s Slot) Equal(o Slot) bool { return s.t.Equal(o.t) }

// Storage returns the zone-less UTC form used as the store key.
func (s Slot) Storage() string { return s.t.Format(StorageLayout) }

// String returns the external form, e.g. 2024-01-01T18:00:00Z.
func (s Slot) String() string { return s.t.Format(APILayout) }

// Day returns the UTC calendar day of the slot.
func (s Slot) Day() string { return s.t.Format(DayLayout) }

// MarshalJSON encodes the slot in its external form.
func (s Slot) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// DayBounds returns the [start, end) storage strings covering one UTC day.
func DayBounds(day string) (string, string, error) {
	d, err := time.Parse(DayLayout, strings.TrimSpace(day))
	if err != nil {
		return "", "", ErrInvalidTimestamp
	}
	return d.Format(StorageLayout), d.AddDate(0, 0, 1).Format(StorageLayout), nil
}
