package core

import (
	"encoding/json"
	"strings"
	"time"
)

// MonthLayout is the wire and storage form of a month: always the first day.
const MonthLayout = "2006-01-02"

// Month is a calendar month, normalized to its first day at midnight UTC.
type Month struct {
	time.Time
}

// NewMonth returns the month for year and month.
func NewMonth(year int, month time.Month) Month {
	return Month{Time: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)}
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return NewMonth(t.Year(), t.Month())
}

// ParseMonth parses "YYYY-MM-01", "YYYY-MM" or any "YYYY-MM-DD" date,
// normalizing to the first of the month.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	layout := MonthLayout
	if len(s) == len("2006-01") {
		layout = "2006-01"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return Month{}, ErrInvalidMonth
	}
	return MonthOf(t), nil
}

func (m Month) String() string {
	return m.Format(MonthLayout)
}

// Next returns the following month.
func (m Month) Next() Month {
	return Month{Time: m.AddDate(0, 1, 0)}
}

// Prev returns the preceding month.
func (m Month) Prev() Month {
	return Month{Time: m.AddDate(0, -1, 0)}
}

func (m Month) Before(o Month) bool { return m.Time.Before(o.Time) }
func (m Month) After(o Month) bool  { return m.Time.After(o.Time) }
func (m Month) Equal(o Month) bool  { return m.Time.Equal(o.Time) }

func (m Month) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Month) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrInvalidMonth
	}
	parsed, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
