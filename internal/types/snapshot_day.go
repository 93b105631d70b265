package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// SnapshotDay identifies a UTC calendar day. It is the upsert key for snapshots,
// so two instants on the same UTC date always produce equal values.
type SnapshotDay struct {
	t time.Time
}

// DayOf returns the UTC day containing t
func DayOf(t time.Time) SnapshotDay {
	u := t.UTC()
	return SnapshotDay{t: time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

// Today returns the current UTC day
func Today() SnapshotDay {
	return DayOf(time.Now())
}

// ParseSnapshotDay parses a YYYY-MM-DD string
func ParseSnapshotDay(s string) (SnapshotDay, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return SnapshotDay{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return SnapshotDay{t: t}, nil
}

// Start returns 00:00:00 UTC of the day
func (d SnapshotDay) Start() time.Time {
	return d.t
}

// End returns the exclusive upper bound of the day (next day's start)
func (d SnapshotDay) End() time.Time {
	return d.t.AddDate(0, 0, 1)
}

// Range returns the half-open interval [start, end) covering the day
func (d SnapshotDay) Range() (time.Time, time.Time) {
	return d.Start(), d.End()
}

// Contains reports whether t falls within the day
func (d SnapshotDay) Contains(t time.Time) bool {
	return !t.Before(d.Start()) && t.Before(d.End())
}

// AddDays returns the day n days later (or earlier when n is negative)
func (d SnapshotDay) AddDays(n int) SnapshotDay {
	return SnapshotDay{t: d.t.AddDate(0, 0, n)}
}

// Before reports whether d is strictly earlier than other
func (d SnapshotDay) Before(other SnapshotDay) bool {
	return d.t.Before(other.t)
}

// After reports whether d is strictly later than other
func (d SnapshotDay) After(other SnapshotDay) bool {
	return d.t.After(other.t)
}

// Equal reports whether both values are the same day
func (d SnapshotDay) Equal(other SnapshotDay) bool {
	return d.t.Equal(other.t)
}

// IsZero reports whether the day is unset
func (d SnapshotDay) IsZero() bool {
	return d.t.IsZero()
}

func (d SnapshotDay) String() string {
	return d.t.Format(dayLayout)
}

// MarshalJSON encodes the day as "YYYY-MM-DD"
func (d SnapshotDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string
func (d *SnapshotDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSnapshotDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores the day as a DATE-compatible time
func (d SnapshotDay) Value() (driver.Value, error) {
	return d.t, nil
}

// Scan reads a DATE or TIMESTAMP column
func (d *SnapshotDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*d = DayOf(v)
		return nil
	case string:
		parsed, err := ParseSnapshotDay(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case nil:
		*d = SnapshotDay{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into SnapshotDay", src)
	}
}
