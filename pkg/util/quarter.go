package util

import (
	"fmt"
	"time"
)

// Quarter helpers. The engine addresses time as a zero-based quarter index
// from fund inception; these convert between indices, labels and dates.

// QuarterLabel renders a zero-based quarter index as "Y2Q3".
func QuarterLabel(index int) string {
	if index < 0 {
		index = 0
	}
	return fmt.Sprintf("Y%dQ%d", index/4+1, index%4+1)
}

// QuarterIndexAt returns the zero-based quarter index of t relative to the
// fund inception date. Times before inception map to 0.
func QuarterIndexAt(inception, t time.Time) int {
	if t.Before(inception) {
		return 0
	}
	years := t.Year() - inception.Year()
	quarters := years*4 + int(t.Month()-1)/3 - int(inception.Month()-1)/3
	if quarters < 0 {
		return 0
	}
	return quarters
}

// QuarterStart returns the first day of the quarter holding t, in UTC.
func QuarterStart(t time.Time) time.Time {
	month := time.Month((int(t.Month()-1)/3)*3 + 1)
	return time.Date(t.Year(), month, 1, 0, 0, 0, 0, time.UTC)
}

// AddQuarters shifts a date by n quarters, preserving the day when it fits.
func AddQuarters(t time.Time, n int) time.Time {
	return t.AddDate(0, 3*n, 0)
}
