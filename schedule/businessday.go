// Package schedule implements business-day aware send timing: weekend and
// holiday skipping plus the acceptable daily send window.
package schedule

import "time"

// Send window boundaries, local time. Sends are acceptable inside
// [WindowStartHour, WindowEndHour); times snapped forward land on SnapHour.
const (
	WindowStartHour = 8
	WindowEndHour   = 18
	SnapHour        = 9
)

// fixedHolidays lists recognized holidays by month/day only. Year-agnostic,
// so moveable holidays (Thanksgiving, Memorial Day) are not handled.
var fixedHolidays = map[[2]int]string{
	{1, 1}:   "New Year's Day",
	{7, 4}:   "Independence Day",
	{11, 11}: "Veterans Day",
	{12, 25}: "Christmas Day",
}

// IsBusinessDay reports whether t falls on a weekday that is not a
// recognized fixed-date holiday.
func IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := fixedHolidays[[2]int{int(t.Month()), t.Day()}]
	return !holiday
}

// AddBusinessDays walks forward one calendar day at a time until n business
// days strictly after start have been counted. n=0 returns start unchanged.
// Always terminates: the holiday list is finite and weekends recur every
// seven days.
func AddBusinessDays(start time.Time, n int) time.Time {
	t := start
	for counted := 0; counted < n; {
		t = t.AddDate(0, 0, 1)
		if IsBusinessDay(t) {
			counted++
		}
	}
	return t
}

// NextGoodSendTime returns the earliest acceptable send time at or after t.
// Inside a business day within the send window the input is returned
// unchanged; before the window on a business day it snaps to 09:00 the same
// day; otherwise it advances to 09:00 on the next business day.
func NextGoodSendTime(t time.Time) time.Time {
	if IsBusinessDay(t) {
		h := t.Hour()
		if h >= WindowStartHour && h < WindowEndHour {
			return t
		}
		if h < WindowStartHour {
			return time.Date(t.Year(), t.Month(), t.Day(), SnapHour, 0, 0, 0, t.Location())
		}
	}
	next := t
	for {
		next = next.AddDate(0, 0, 1)
		if IsBusinessDay(next) {
			break
		}
	}
	return time.Date(next.Year(), next.Month(), next.Day(), SnapHour, 0, 0, 0, t.Location())
}
