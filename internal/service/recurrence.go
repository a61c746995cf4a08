package service

import (
	"fmt"
	"time"

	"agrimarket/internal/model"
)

// truncateDay maps t to UTC midnight of its wall-clock calendar date, the shape DATE
// columns come back in from the driver.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NextExecutionDate advances current by one recurrence period. Monthly schedules keep
// anchorDay (or current's day when anchorDay is 0) and clamp to the month's last day.
func NextExecutionDate(current time.Time, frequency string, anchorDay int) (time.Time, error) {
	current = truncateDay(current)

	switch frequency {
	case model.FrequencyDaily:
		return current.AddDate(0, 0, 1), nil
	case model.FrequencyWeekly:
		return current.AddDate(0, 0, 7), nil
	case model.FrequencyMonthly:
		day := anchorDay
		if day < 1 || day > 31 {
			day = current.Day()
		}
		first := time.Date(current.Year(), current.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		if last := daysIn(first.Year(), first.Month()); day > last {
			day = last
		}
		return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown frequency %q", ErrValidation, frequency)
	}
}

func validFrequency(f string) bool {
	switch f {
	case model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyMonthly:
		return true
	}
	return false
}
