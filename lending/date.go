package lending

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Civil day, always rendered as fixed-width YYYY-MM-DD
// =============================================================================

// Date is a calendar day with no time-of-day or zone. Due dates, request
// dates and return dates are all Dates, so overdue checks compare days and
// never instants. The zero Date means "unset" (e.g. a loan not returned yet).
type Date struct {
	t time.Time
}

const (
	dateLayout      = "2006-01-02"
	yearMonthLayout = "2006-01"
	clockLayout     = "15:04:05"
)

// NewDate builds a Date. Out-of-range values are normalised the same way
// time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar day in the instant's own zone.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate accepts exactly YYYY-MM-DD. Anything else (missing zero padding,
// trailing time, other separators) is rejected so stored dates stay
// lexicographically ordered.
func ParseDate(s string) (Date, error) {
	if len(s) != len(dateLayout) {
		return Date{}, &InputError{Field: "date", Value: s, Reason: "must be YYYY-MM-DD"}
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, &InputError{Field: "date", Value: s, Reason: "must be YYYY-MM-DD"}
	}
	return Date{t: t}, nil
}

// MustParseDate is ParseDate for fixtures.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(o Date) bool       { return d.t.Before(o.t) }
func (d Date) After(o Date) bool        { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool        { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }
func (d Date) IsZero() bool             { return d.t.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// DaysUntil returns the signed number of days from d to o.
func (d Date) DaysUntil(o Date) int {
	return int(o.t.Sub(d.t).Hours() / 24)
}

func (d Date) Time() time.Time { return d.t }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(dateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// YEAR-MONTH - Magazine issue dates
// =============================================================================

// YearMonth identifies a magazine issue.
type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth accepts YYYY-MM.
func ParseYearMonth(s string) (YearMonth, error) {
	if len(s) != len(yearMonthLayout) {
		return YearMonth{}, &InputError{Field: "publication_date", Value: s, Reason: "must be YYYY-MM"}
	}
	t, err := time.Parse(yearMonthLayout, s)
	if err != nil {
		return YearMonth{}, &InputError{Field: "publication_date", Value: s, Reason: "must be YYYY-MM"}
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) IsZero() bool { return ym.Year == 0 && ym.Month == 0 }

func (ym YearMonth) String() string {
	if ym.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

func (ym YearMonth) MarshalText() ([]byte, error) { return []byte(ym.String()), nil }

func (ym *YearMonth) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*ym = YearMonth{}
		return nil
	}
	parsed, err := ParseYearMonth(string(b))
	if err != nil {
		return err
	}
	*ym = parsed
	return nil
}

// =============================================================================
// CLOCK TIME - Time-of-day stamps on ledger records
// =============================================================================

// ClockTime is a wall-clock time of day, HH:MM:SS.
type ClockTime struct {
	Hour, Minute, Second int
	set                  bool
}

func ClockOf(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(), set: true}
}

func ParseClockTime(s string) (ClockTime, error) {
	if len(s) != len(clockLayout) {
		return ClockTime{}, &InputError{Field: "time", Value: s, Reason: "must be HH:MM:SS"}
	}
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return ClockTime{}, &InputError{Field: "time", Value: s, Reason: "must be HH:MM:SS"}
	}
	return ClockOf(t), nil
}

func (c ClockTime) IsZero() bool { return !c.set }

func (c ClockTime) String() string {
	if !c.set {
		return ""
	}
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

func (c ClockTime) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ClockTime) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*c = ClockTime{}
		return nil
	}
	parsed, err := ParseClockTime(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// =============================================================================
// CLOCK - Source of "now"
// =============================================================================

// Clock supplies the current instant. Tests pin it with FixedClock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the local wall clock.
var SystemClock Clock = systemClock{}

// FixedClock always returns the same instant; Set moves it.
type FixedClock struct {
	At time.Time
}

func (c *FixedClock) Now() time.Time { return c.At }

// Set moves the clock to 10:00 on the given day.
func (c *FixedClock) Set(d Date) { c.At = d.Time().Add(10 * time.Hour) }

// Advance moves the clock forward by n days.
func (c *FixedClock) Advance(n int) { c.At = c.At.AddDate(0, 0, n) }
