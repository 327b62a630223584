package core

import (
	"fmt"
	"time"
)

const (
	// Earlier moves the scope cursor one month back.
	Earlier Direction = "earlier"
	// Later moves the scope cursor one month forward.
	Later Direction = "later"
)

type (
	// Direction selects which way month navigation moves.
	Direction string

	// Month identifies a calendar month; day-of-month is irrelevant to it.
	Month struct {
		Year  int
		Month int // 1-12
	}
)

func (d Direction) IsValid() bool {
	return d == Earlier || d == Later
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: int(t.Month())}
}

// Next returns the following calendar month, rolling over December.
func (m Month) Next() Month {
	if m.Month == 12 {
		return Month{Year: m.Year + 1, Month: 1}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// Prev returns the preceding calendar month, rolling over January.
func (m Month) Prev() Month {
	if m.Month == 1 {
		return Month{Year: m.Year - 1, Month: 12}
	}
	return Month{Year: m.Year, Month: m.Month - 1}
}

// Advance moves the month by exactly one step in the given direction.
func (m Month) Advance(d Direction) Month {
	if d == Earlier {
		return m.Prev()
	}
	return m.Next()
}

// Contains reports whether the date falls inside this calendar month.
// Invalid (zero) dates are never contained.
func (m Month) Contains(d Date) bool {
	return d.Valid() && d.Year() == m.Year && int(d.Month()) == m.Month
}

// String returns the zero-padded key, e.g. "2024-03".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// TrailingMonths returns the dense window of n calendar months ending at end,
// in chronological order. Every slot is present even if nothing falls in it.
func TrailingMonths(end Month, n int) []Month {
	if n <= 0 {
		return nil
	}
	out := make([]Month, n)
	m := end
	for i := n - 1; i >= 0; i-- {
		out[i] = m
		m = m.Prev()
	}
	return out
}
