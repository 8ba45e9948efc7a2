package dca

import (
	"sync"
	"time"
)

// MarketCalendar answers trading-day questions for civil dates. All dates are
// expected at UTC midnight; see Date.
type MarketCalendar interface {
	IsTradingDay(d time.Time) bool
	// NextTradingDay returns d if it is a trading day, otherwise the first
	// trading day after it.
	NextTradingDay(d time.Time) time.Time
	// AddTradingDays moves n trading days forward from d.
	AddTradingDays(d time.Time, n int) time.Time
}

// Date truncates t to its civil date at UTC midnight.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NYSECalendar implements the New York Stock Exchange full-day closure rules.
type NYSECalendar struct {
	mu    sync.Mutex
	years map[int]map[time.Time]struct{}
}

// NewNYSECalendar creates a calendar with an empty holiday cache.
func NewNYSECalendar() *NYSECalendar {
	return &NYSECalendar{years: make(map[int]map[time.Time]struct{})}
}

func (c *NYSECalendar) IsTradingDay(d time.Time) bool {
	d = Date(d)
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.IsHoliday(d)
}

func (c *NYSECalendar) NextTradingDay(d time.Time) time.Time {
	d = Date(d)
	for !c.IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func (c *NYSECalendar) AddTradingDays(d time.Time, n int) time.Time {
	d = Date(d)
	for n > 0 {
		d = c.NextTradingDay(d.AddDate(0, 0, 1))
		n--
	}
	return d
}

// IsHoliday reports whether d is an exchange holiday (weekends excluded).
func (c *NYSECalendar) IsHoliday(d time.Time) bool {
	d = Date(d)
	_, ok := c.holidays(d.Year())[d]
	return ok
}

func (c *NYSECalendar) holidays(year int) map[time.Time]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.years[year]; ok {
		return h
	}
	h := make(map[time.Time]struct{})
	for _, d := range nyseHolidays(year) {
		h[d] = struct{}{}
	}
	c.years[year] = h
	return h
}

func nyseHolidays(year int) []time.Time {
	var days []time.Time

	// New Year's Day falling on a Saturday is not observed on the prior Friday.
	if ny := civil(year, time.January, 1); ny.Weekday() == time.Sunday {
		days = append(days, ny.AddDate(0, 0, 1))
	} else if ny.Weekday() != time.Saturday {
		days = append(days, ny)
	}

	if year >= 1998 {
		days = append(days, nthWeekday(year, time.January, time.Monday, 3))
	}
	days = append(days,
		nthWeekday(year, time.February, time.Monday, 3),
		easter(year).AddDate(0, 0, -2),
		lastWeekday(year, time.May, time.Monday),
	)
	if year >= 2022 {
		days = append(days, observed(civil(year, time.June, 19)))
	}
	days = append(days,
		observed(civil(year, time.July, 4)),
		nthWeekday(year, time.September, time.Monday, 1),
		nthWeekday(year, time.November, time.Thursday, 4),
		observed(civil(year, time.December, 25)),
	)
	return days
}

func civil(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// observed shifts a Saturday holiday to Friday and a Sunday holiday to Monday.
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	d := civil(year, month, 1)
	offset := (int(wd) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+7*(n-1))
}

func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	d := civil(year, month+1, 0)
	offset := (int(d.Weekday()) - int(wd) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// easter returns Western Easter Sunday (anonymous Gregorian algorithm).
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
	return civil(year, time.Month(month), day)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return civil(year, month+1, 0).Day()
}
