package resolve

import (
	"time"

	types "github.com/datakiln/retaildw/internal/domain"
)

// DateKey computes the deterministic YYYYMMDD key for a timestamp.
func DateKey(t time.Time) int {
	t = t.UTC()
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// DateRow derives the full calendar dimension row for a date.
func DateRow(t time.Time) *types.DimDate {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	_, week := day.ISOWeek()
	quarter := (int(day.Month())-1)/3 + 1
	dow := int(day.Weekday())
	if dow == 0 {
		dow = 7 // ISO numbering, Monday = 1
	}
	return &types.DimDate{
		DateKey:     DateKey(day),
		DateValue:   day,
		Year:        day.Year(),
		Quarter:     quarter,
		Month:       int(day.Month()),
		Week:        week,
		DayOfYear:   day.YearDay(),
		DayOfMonth:  day.Day(),
		DayOfWeek:   dow,
		MonthName:   day.Month().String(),
		DayName:     day.Weekday().String(),
		QuarterName: quarterName(quarter),
		IsWeekend:   day.Weekday() == time.Saturday || day.Weekday() == time.Sunday,
		IsHoliday:   false,
	}
}

func quarterName(q int) string {
	switch q {
	case 1:
		return "Q1"
	case 2:
		return "Q2"
	case 3:
		return "Q3"
	default:
		return "Q4"
	}
}
