package util

import (
	"math/rand"
	"time"
)

// RandIntRange returns a random int in [lo, hi]. It returns lo when the
// range is empty.
func RandIntRange(r *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.Intn(hi-lo+1)
}

// RandDate returns a valid calendar day between the first of January of
// minYear and the last of December of maxYear.
func RandDate(r *rand.Rand, minYear, maxYear int) time.Time {
	year := RandIntRange(r, minYear, maxYear)
	month := time.Month(RandIntRange(r, 1, 12))
	// day 0 of the next month is the last day of this one
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	return time.Date(year, month, RandIntRange(r, 1, last), 0, 0, 0, 0, time.UTC)
}
