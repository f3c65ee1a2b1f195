package library

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Accepted year range for loan and registration dates.
const (
	MinYear = 2000
	MaxYear = 2100
)

// Date is a calendar day without time or zone. The zero value is not a valid date.
type Date struct {
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year"`
}

// NewDate builds a Date and checks it with IsValidDate.
func NewDate(day, month, year int) (Date, error) {
	if !IsValidDate(day, month, year) {
		return Date{}, fmt.Errorf("%w: %d-%d-%d", ErrInvalidDate, day, month, year)
	}
	return Date{Day: day, Month: month, Year: year}, nil
}

// DateOf converts a time.Time (in its own location) to a Date. The front end
// uses it when "today" comes from the system clock.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Day: d, Month: int(m), Year: y}
}

// IsLeapYear reports whether year has a 29th of February.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the number of days of month in year.
func DaysInMonth(month, year int) (int, error) {
	switch month {
	case 2:
		if IsLeapYear(year) {
			return 29, nil
		}
		return 28, nil
	case 4, 6, 9, 11:
		return 30, nil
	case 1, 3, 5, 7, 8, 10, 12:
		return 31, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
}

// IsValidDate reports whether day/month/year names a real day inside [MinYear, MaxYear].
func IsValidDate(day, month, year int) bool {
	if year < MinYear || year > MaxYear {
		return false
	}
	n, err := DaysInMonth(month, year)
	if err != nil {
		return false
	}
	return day >= 1 && day <= n
}

// Valid is IsValidDate applied to d.
func (d Date) Valid() bool { return IsValidDate(d.Day, d.Month, d.Year) }

// AddDays returns the date n days after d, walking whole months at a time.
// Non-positive n returns d unchanged.
func (d Date) AddDays(n int) Date {
	out := d
	for n > 0 {
		dim, err := DaysInMonth(out.Month, out.Year)
		if err != nil {
			// Only reachable for a date that was never valid.
			return out
		}
		left := dim - out.Day
		if left >= n {
			out.Day += n
			return out
		}
		n -= left + 1
		out.Day = 1
		out.Month++
		if out.Month > 12 {
			out.Month = 1
			out.Year++
		}
	}
	return out
}

// Compare orders dates by year, then month, then day. The result is negative,
// zero or positive as d is before, equal to or after other.
func (d Date) Compare(other Date) int {
	if d.Year != other.Year {
		return d.Year - other.Year
	}
	if d.Month != other.Month {
		return d.Month - other.Month
	}
	return d.Day - other.Day
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.Compare(other) > 0 }

// DaysBetween returns the number of days from a to b (negative when b is before a).
func DaysBetween(a, b Date) int {
	return b.ordinal() - a.ordinal()
}

// ordinal counts days since 1 January of year 1 (proleptic Gregorian).
func (d Date) ordinal() int {
	y := d.Year - 1
	days := y*365 + y/4 - y/100 + y/400
	for m := 1; m < d.Month; m++ {
		n, _ := DaysInMonth(m, d.Year)
		days += n
	}
	return days + d.Day
}

// String formats d as D-M-Y, the on-disk encoding.
func (d Date) String() string {
	return fmt.Sprintf("%d-%d-%d", d.Day, d.Month, d.Year)
}

// ParseDate reads "D-M-Y", "D/M/Y" or "D M Y" and validates the result.
func ParseDate(s string) (Date, error) {
	parts := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		return r == '-' || r == '/' || r == ' ' || r == '\t'
	})
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		nums[i] = n
	}
	return NewDate(nums[0], nums[1], nums[2])
}

// wellFormed is Valid without the year window; computed due dates may run past MaxYear.
func (d Date) wellFormed() bool {
	n, err := DaysInMonth(d.Month, d.Year)
	return err == nil && d.Year >= 1 && d.Day >= 1 && d.Day <= n
}
