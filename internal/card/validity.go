package card

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the storage and JSON form of a calendar date.
	DateLayout = "2006-01-02"
	// DisplayLayout is the form printed on the card.
	DisplayLayout = "02-01-2006"
)

// Date is a calendar date with no time-of-day or zone component.
type Date struct {
	time.Time
}

// NewDate keeps only the calendar date of t, as seen in t's own location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t}, nil
}

// AddYears advances the date by n calendar years.
func (d Date) AddYears(n int) Date {
	return Date{d.Time.AddDate(n, 0, 0)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Display renders the date as DD-MM-YYYY, or "" for the zero date.
func (d Date) Display() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DisplayLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner for DATE columns.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = NewDate(v)
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into card.Date", src)
	}
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}

// ValidityWindow is the period a card is valid for. It never changes once
// computed for a card.
type ValidityWindow struct {
	ValidFrom Date `json:"valid_from"`
	ValidThru Date `json:"valid_thru"`
}

// ComputeValidity starts the window on the issue date and ends it the
// tier's number of years later.
func ComputeValidity(tier Tier, issue time.Time) ValidityWindow {
	years := tier.ValidityYears
	if years <= 0 {
		years = 1
	}
	from := NewDate(issue)
	return ValidityWindow{ValidFrom: from, ValidThru: from.AddYears(years)}
}

// ComputeValidity resolves cardType under the table's policy and computes its window.
func (t *Tiers) ComputeValidity(cardType string, issue time.Time) (ValidityWindow, error) {
	tier, err := t.Resolve(cardType)
	if err != nil {
		return ValidityWindow{}, err
	}
	return ComputeValidity(tier, issue), nil
}
