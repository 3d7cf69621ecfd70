package payperiod

import (
	"errors"
	"time"
)

var ErrUnknownFrequency = errors.New("unknown schedule frequency")

// Generate produces the schedule's periods for one calendar year. It is a
// pure function: the same schedule and year always yield the same periods.
// Period numbers restart at 1 each year in start-date order.
func Generate(schedule Schedule, year int) ([]Period, error) {
	var periods []Period
	switch schedule.Frequency {
	case FrequencyMonthly:
		periods = generateMonthly(year)
	case FrequencySemimonthly:
		periods = generateSemimonthly(year)
	case FrequencyBiweekly:
		periods = generateSpans(schedule.AnchorDate, year, 14)
	case FrequencyWeekly:
		periods = generateSpans(schedule.AnchorDate, year, 7)
	default:
		return nil, ErrUnknownFrequency
	}

	for i := range periods {
		periods[i].ScheduleID = schedule.ID
		periods[i].PeriodNumber = i + 1
		periods[i].Year = year
		periods[i].PayDate = payDate(periods[i].EndDate, schedule.PayDateOffsetDays)
	}
	return periods, nil
}

func generateMonthly(year int) []Period {
	out := make([]Period, 0, 12)
	for month := time.January; month <= time.December; month++ {
		start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, -1)
		out = append(out, Period{StartDate: start, EndDate: end})
	}
	return out
}

func generateSemimonthly(year int) []Period {
	out := make([]Period, 0, 24)
	for month := time.January; month <= time.December; month++ {
		first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		mid := time.Date(year, month, 15, 0, 0, 0, 0, time.UTC)
		end := first.AddDate(0, 1, -1)
		out = append(out, Period{StartDate: first, EndDate: mid})
		out = append(out, Period{StartDate: mid.AddDate(0, 0, 1), EndDate: end})
	}
	return out
}

// generateSpans walks fixed-length spans aligned to the schedule anchor and
// keeps every span whose start date falls inside the year.
func generateSpans(anchor time.Time, year int, days int) []Period {
	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	if anchor.IsZero() {
		anchor = yearStart
	}
	start := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, time.UTC)

	if start.Before(yearStart) {
		diffDays := int(yearStart.Sub(start).Hours() / 24)
		start = start.AddDate(0, 0, (diffDays/days)*days)
		for start.Before(yearStart) {
			start = start.AddDate(0, 0, days)
		}
	} else {
		for {
			prev := start.AddDate(0, 0, -days)
			if prev.Before(yearStart) {
				break
			}
			start = prev
		}
	}

	var out []Period
	for start.Year() == year {
		out = append(out, Period{StartDate: start, EndDate: start.AddDate(0, 0, days-1)})
		start = start.AddDate(0, 0, days)
	}
	return out
}

// payDate applies the schedule offset and rolls weekend pay dates back to
// the preceding Friday.
func payDate(periodEnd time.Time, offsetDays int) time.Time {
	d := periodEnd.AddDate(0, 0, offsetDays)
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, -2)
	}
	return d
}
