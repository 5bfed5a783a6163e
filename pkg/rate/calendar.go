package rate

import "time"

const dateLayout = "2006-01-02"

// IsAfterHours reports whether t falls on a weekend, outside the business
// hour window, or on a holiday, evaluated in the engine's time zone.
func (e *Engine) IsAfterHours(t time.Time) bool {
	lt := t.In(e.loc)
	switch lt.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	if lt.Hour() < e.cfg.BusinessHoursStart || lt.Hour() >= e.cfg.BusinessHoursEnd {
		return true
	}
	return e.IsHoliday(lt)
}

func (e *Engine) IsHoliday(t time.Time) bool {
	lt := t.In(e.loc)
	day := lt.Format(dateLayout)
	if _, ok := e.extraHolidays[day]; ok {
		return true
	}
	if !e.cfg.FederalHolidays {
		return false
	}
	// Dec 31 may be the observed New Year's Day of the following year.
	for _, year := range []int{lt.Year(), lt.Year() + 1} {
		for _, h := range federalHolidays(year) {
			if h.Format(dateLayout) == day {
				return true
			}
		}
	}
	return false
}

// federalHolidays returns US federal holidays for a year, including the
// observed weekday for fixed-date holidays that land on a weekend.
func federalHolidays(year int) []time.Time {
	fixed := []time.Time{
		date(year, time.January, 1),
		date(year, time.June, 19),
		date(year, time.July, 4),
		date(year, time.November, 11),
		date(year, time.December, 25),
	}
	out := make([]time.Time, 0, 16)
	for _, d := range fixed {
		out = append(out, d)
		switch d.Weekday() {
		case time.Saturday:
			out = append(out, d.AddDate(0, 0, -1))
		case time.Sunday:
			out = append(out, d.AddDate(0, 0, 1))
		}
	}
	out = append(out,
		nthWeekday(year, time.January, time.Monday, 3),
		nthWeekday(year, time.February, time.Monday, 3),
		lastWeekday(year, time.May, time.Monday),
		nthWeekday(year, time.September, time.Monday, 1),
		nthWeekday(year, time.October, time.Monday, 2),
		nthWeekday(year, time.November, time.Thursday, 4),
	)
	return out
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	d := date(year, month, 1)
	offset := (int(wd) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+7*(n-1))
}

func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	d := date(year, month+1, 1).AddDate(0, 0, -1)
	offset := (int(d.Weekday()) - int(wd) + 7) % 7
	return d.AddDate(0, 0, -offset)
}
