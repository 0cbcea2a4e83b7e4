package domain

import "time"

// Day truncates t to its calendar date at UTC midnight. All persisted
// dates (entries, exits, snapshots) are normalized through this.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}
