// Package dates has the day-boundary helpers the streak engine builds
// on. A "day" is a calendar date in the viewer's time zone, never a
// rolling 24-hour window.
package dates

import "time"

// SameDay reports whether a and b fall on the same calendar date in
// loc. Two timestamps 23 hours apart can still be the same day, and two
// a minute apart can be different days.
func SameDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Yesterday returns the instant one calendar day before ref. Using
// AddDate keeps it correct across DST transitions where a day is not
// 24 hours.
func Yesterday(ref time.Time, loc *time.Location) time.Time {
	return ref.In(loc).AddDate(0, 0, -1)
}
