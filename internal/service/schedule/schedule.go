// Package schedule decides when outreach email may go out. Business hours
// are weekdays 9:00-16:59 in the evaluated clock's location.
package schedule

import "time"

// IsBusinessHours reports whether t falls inside the send window.
func IsBusinessHours(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return t.Hour() >= 9 && t.Hour() < 17
}

// NextBusinessTime returns the next weekday 9:00 strictly after t. A send
// deferred at 10:00 on Friday lands Saturday, which rolls to Monday.
func NextBusinessTime(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	next = time.Date(next.Year(), next.Month(), next.Day(), 9, 0, 0, 0, next.Location())
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// InContactZone converts t into the contact's IANA timezone for window
// evaluation. An empty or unknown zone falls back to UTC.
func InContactZone(t time.Time, tz string) time.Time {
	if tz == "" {
		return t.UTC()
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return t.UTC()
	}
	return t.In(loc)
}
