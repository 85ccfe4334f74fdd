package campaigns

import "time"

// Event describes one entry of the marketing calendar.
type Event struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	// Date computes the event's calendar date for a year, in UTC.
	Date func(year int) time.Time `json:"-"`
}

func fixed(month time.Month, day int) func(int) time.Time {
	return func(year int) time.Time {
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	}
}

// nthWeekday returns the nth (1-based) weekday of a month.
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+(n-1)*7)
}

// lastWeekday returns the last weekday of a month.
func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	offset := (int(d.Weekday()) - int(weekday) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// easter implements the anonymous Gregorian computus.
func easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func thanksgiving(year int) time.Time {
	return nthWeekday(year, time.November, time.Thursday, 4)
}

// Catalog is the fixed marketing calendar tenants pick events from, in
// calendar order.
var Catalog = []Event{
	{Key: "new-years", Name: "New Year's Day", Date: fixed(time.January, 1)},
	{Key: "valentines", Name: "Valentine's Day", Date: fixed(time.February, 14)},
	{Key: "st-patricks", Name: "St. Patrick's Day", Date: fixed(time.March, 17)},
	{Key: "easter", Name: "Easter", Date: easter},
	{Key: "mothers-day", Name: "Mother's Day", Date: func(y int) time.Time { return nthWeekday(y, time.May, time.Sunday, 2) }},
	{Key: "memorial-day", Name: "Memorial Day", Date: func(y int) time.Time { return lastWeekday(y, time.May, time.Monday) }},
	{Key: "fathers-day", Name: "Father's Day", Date: func(y int) time.Time { return nthWeekday(y, time.June, time.Sunday, 3) }},
	{Key: "july-4th", Name: "Independence Day", Date: fixed(time.July, 4)},
	{Key: "labor-day", Name: "Labor Day", Date: func(y int) time.Time { return nthWeekday(y, time.September, time.Monday, 1) }},
	{Key: "halloween", Name: "Halloween", Date: fixed(time.October, 31)},
	{Key: "thanksgiving", Name: "Thanksgiving", Date: thanksgiving},
	{Key: "black-friday", Name: "Black Friday", Date: func(y int) time.Time { return thanksgiving(y).AddDate(0, 0, 1) }},
	{Key: "christmas", Name: "Christmas", Date: fixed(time.December, 25)},
	{Key: "new-years-eve", Name: "New Year's Eve", Date: fixed(time.December, 31)},
}

// EventDate returns the calendar date for an event key in a year.
func EventDate(key string, year int) (time.Time, bool) {
	for _, ev := range Catalog {
		if ev.Key == key {
			return ev.Date(year), true
		}
	}
	return time.Time{}, false
}

// SendDate is the day an event campaign fires: the event date minus its
// lead-time offset.
func SendDate(eventKey string, eventYear, sendDaysBefore int) (time.Time, bool) {
	date, ok := EventDate(eventKey, eventYear)
	if !ok {
		return time.Time{}, false
	}
	return date.AddDate(0, 0, -sendDaysBefore), true
}

// SameDay reports whether two times fall on the same UTC calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
