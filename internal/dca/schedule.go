package dca

import (
	"time"
)

// ScheduledPurchase is one monthly purchase slot. Scheduled is the clamped
// calendar date; Effective is the trading day the purchase is attempted on.
type ScheduledPurchase struct {
	Scheduled time.Time
	Effective time.Time
}

// Scheduler derives purchase dates for a request.
type Scheduler struct {
	calendar MarketCalendar
	location *time.Location
	now      func() time.Time
}

// MarketLocation returns America/New_York, falling back to fixed EST if tzdata is missing.
func MarketLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*3600)
	}
	return loc
}

// NewScheduler creates a scheduler. A nil now uses time.Now.
func NewScheduler(calendar MarketCalendar, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		calendar: calendar,
		location: MarketLocation(),
		now:      now,
	}
}

// Schedule returns exactly NumMonths purchases in strictly increasing order of
// effective date. The window starts NumMonths calendar months back and takes
// the first StartDay on or after that point. If rolling forward would push the
// last purchase past the most recent completed session, the whole window moves
// back one month.
func (s *Scheduler) Schedule(req InvestmentRequest) ([]ScheduledPurchase, error) {
	asOf := Date(s.now().In(s.location))
	cutoff := asOf.AddDate(0, 0, -1)
	for !s.calendar.IsTradingDay(cutoff) {
		cutoff = cutoff.AddDate(0, 0, -1)
	}

	anchor := asOf
	for {
		out, err := s.build(req, anchor)
		if err != nil {
			return nil, err
		}
		if last := out[len(out)-1].Effective; !last.After(cutoff) {
			return out, nil
		}
		anchor = shiftMonths(anchor, -1)
	}
}

func (s *Scheduler) build(req InvestmentRequest, anchor time.Time) ([]ScheduledPurchase, error) {
	start := shiftMonths(anchor, -req.NumMonths())

	first := clampDay(start.Year(), start.Month(), req.StartDay())
	if first.Before(start) {
		next := shiftMonths(start, 1)
		first = clampDay(next.Year(), next.Month(), req.StartDay())
	}

	out := make([]ScheduledPurchase, 0, req.NumMonths())
	for i := 0; i < req.NumMonths(); i++ {
		m := time.Date(first.Year(), first.Month()+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		scheduled := clampDay(m.Year(), m.Month(), req.StartDay())
		effective := s.calendar.NextTradingDay(scheduled)

		if n := len(out); n > 0 && !effective.After(out[n-1].Effective) {
			return nil, newError(KindInternal, nil,
				"purchase schedule is not strictly increasing at %s", effective.Format(DateLayout))
		}
		out = append(out, ScheduledPurchase{Scheduled: scheduled, Effective: effective})
	}
	return out, nil
}

// clampDay builds year-month-day, clamping day to the month's last day.
func clampDay(year int, month time.Month, day int) time.Time {
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return civil(year, month, day)
}

// shiftMonths moves d by n calendar months, clamping the day of month.
func shiftMonths(d time.Time, n int) time.Time {
	m := time.Date(d.Year(), d.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return clampDay(m.Year(), m.Month(), d.Day())
}
