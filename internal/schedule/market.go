// Package schedule knows the US equity market calendar and runs scans
// on it via cron entries pinned to Eastern Time.
package schedule

import (
	"fmt"
	"time"

	"stratscan/pkg/model"
)

// MarketSchedule holds the regular session times in US Eastern Time
type MarketSchedule struct {
	OpenHour  int // 9
	OpenMin   int // 30
	CloseHour int // 16
	CloseMin  int // 0
}

// DefaultMarketSchedule returns NYSE/NASDAQ regular session hours
func DefaultMarketSchedule() MarketSchedule {
	return MarketSchedule{
		OpenHour:  9,
		OpenMin:   30,
		CloseHour: 16,
		CloseMin:  0,
	}
}

// MarketStatus describes the market at one point in time
type MarketStatus struct {
	IsOpen        bool
	CurrentTimeET time.Time
	OpenTime      time.Time
	CloseTime     time.Time
	TimeToOpen    time.Duration
	TimeToClose   time.Duration
	Reason        string // "open", "weekend", "holiday", "pre-market", "after-hours"
}

// GetETLocation returns US Eastern Time
func GetETLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// Fallback: assume EST
		loc = time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// GetMarketStatus checks the market right now
func GetMarketStatus(schedule MarketSchedule) MarketStatus {
	return statusAt(schedule, time.Now())
}

func statusAt(schedule MarketSchedule, at time.Time) MarketStatus {
	loc := GetETLocation()
	now := at.In(loc)

	status := MarketStatus{
		CurrentTimeET: now,
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	status.OpenTime = today.Add(time.Duration(schedule.OpenHour)*time.Hour + time.Duration(schedule.OpenMin)*time.Minute)
	status.CloseTime = today.Add(time.Duration(schedule.CloseHour)*time.Hour + time.Duration(schedule.CloseMin)*time.Minute)

	weekday := now.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		status.IsOpen = false
		status.Reason = "weekend"

		daysUntilMonday := (8 - int(weekday)) % 7
		if daysUntilMonday == 0 {
			daysUntilMonday = 7
		}
		nextMonday := today.AddDate(0, 0, daysUntilMonday)
		nextOpen := nextMonday.Add(time.Duration(schedule.OpenHour)*time.Hour + time.Duration(schedule.OpenMin)*time.Minute)
		status.TimeToOpen = nextOpen.Sub(now)
		return status
	}

	if IsUSHoliday(now) {
		status.IsOpen = false
		status.Reason = "holiday"
		nextDay := nextTradingDay(today, loc)
		nextOpen := nextDay.Add(time.Duration(schedule.OpenHour)*time.Hour + time.Duration(schedule.OpenMin)*time.Minute)
		status.TimeToOpen = nextOpen.Sub(now)
		return status
	}

	currentMinutes := now.Hour()*60 + now.Minute()
	openMinutes := schedule.OpenHour*60 + schedule.OpenMin
	closeMinutes := schedule.CloseHour*60 + schedule.CloseMin

	if currentMinutes < openMinutes {
		status.IsOpen = false
		status.Reason = "pre-market"
		status.TimeToOpen = status.OpenTime.Sub(now)
	} else if currentMinutes >= closeMinutes {
		status.IsOpen = false
		status.Reason = "after-hours"

		nextDay := nextTradingDay(today, loc)
		nextOpen := time.Date(nextDay.Year(), nextDay.Month(), nextDay.Day(),
			schedule.OpenHour, schedule.OpenMin, 0, 0, loc)
		status.TimeToOpen = nextOpen.Sub(now)
	} else {
		status.IsOpen = true
		status.Reason = "open"
		status.TimeToClose = status.CloseTime.Sub(now)
	}

	return status
}

// IsMarketOpen reports whether the regular session is trading now
func IsMarketOpen() bool {
	return GetMarketStatus(DefaultMarketSchedule()).IsOpen
}

// nextTradingDay returns the next weekday after day that is not a
// holiday, at midnight ET
func nextTradingDay(day time.Time, loc *time.Location) time.Time {
	next := day.AddDate(0, 0, 1)
	for {
		wd := next.Weekday()
		if wd != time.Saturday && wd != time.Sunday && !IsUSHoliday(next) {
			return next
		}
		next = next.AddDate(0, 0, 1)
	}
}

// NextCandleClose returns when the bar containing now completes on the
// given timeframe. Intraday bars are aligned to the session open and
// truncated at the close; daily bars close at 16:00 ET, weekly bars on
// Friday, monthly bars on the last trading day of the month.
func NextCandleClose(tf model.Timeframe, now time.Time) time.Time {
	loc := GetETLocation()
	now = now.In(loc)
	schedule := DefaultMarketSchedule()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	open := today.Add(time.Duration(schedule.OpenHour)*time.Hour + time.Duration(schedule.OpenMin)*time.Minute)
	close := today.Add(time.Duration(schedule.CloseHour)*time.Hour + time.Duration(schedule.CloseMin)*time.Minute)

	closeOffset := time.Duration(schedule.CloseHour)*time.Hour + time.Duration(schedule.CloseMin)*time.Minute

	switch tf {
	case model.TFDaily:
		if isTradingDay(today) && now.Before(close) {
			return close
		}
		return nextTradingDay(today, loc).Add(closeOffset)

	case model.TFWeekly:
		day := today
		for day.Weekday() != time.Friday {
			day = day.AddDate(0, 0, 1)
		}
		weekClose := day.Add(closeOffset)
		if now.Before(weekClose) {
			return weekClose
		}
		return day.AddDate(0, 0, 7).Add(closeOffset)

	case model.TFMonthly:
		monthClose := lastTradingDay(now.Year(), now.Month(), loc).Add(closeOffset)
		if now.Before(monthClose) {
			return monthClose
		}
		nextMonth := today.AddDate(0, 1, 0)
		return lastTradingDay(nextMonth.Year(), nextMonth.Month(), loc).Add(closeOffset)

	default:
		d := tf.Duration()
		if !isTradingDay(today) || !now.Before(close) {
			next := nextTradingDay(today, loc)
			return next.Add(time.Duration(schedule.OpenHour)*time.Hour + time.Duration(schedule.OpenMin)*time.Minute).Add(d)
		}
		if now.Before(open) {
			return open.Add(d)
		}
		n := now.Sub(open)/d + 1
		boundary := open.Add(n * d)
		if boundary.After(close) {
			// The session's final bar is truncated at the close.
			return close
		}
		return boundary
	}
}

// isTradingDay reports whether day (midnight ET) is a regular session
func isTradingDay(day time.Time) bool {
	wd := day.Weekday()
	return wd != time.Saturday && wd != time.Sunday && !IsUSHoliday(day)
}

// lastTradingDay returns midnight ET of the month's final session
func lastTradingDay(year int, month time.Month, loc *time.Location) time.Time {
	day := time.Date(year, month+1, 1, 0, 0, 0, 0, loc).AddDate(0, 0, -1)
	for !isTradingDay(day) {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// FormatDuration renders a duration as "3h 24m" or "24m"
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "0s"
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// US market holidays (major closures only)
var usHolidays2024 = []string{
	"2024-01-01", // New Year's Day
	"2024-01-15", // MLK Day
	"2024-02-19", // Presidents Day
	"2024-03-29", // Good Friday
	"2024-05-27", // Memorial Day
	"2024-06-19", // Juneteenth
	"2024-07-04", // Independence Day
	"2024-09-02", // Labor Day
	"2024-11-28", // Thanksgiving
	"2024-12-25", // Christmas
}

var usHolidays2025 = []string{
	"2025-01-01", // New Year's Day
	"2025-01-20", // MLK Day
	"2025-02-17", // Presidents Day
	"2025-04-18", // Good Friday
	"2025-05-26", // Memorial Day
	"2025-06-19", // Juneteenth
	"2025-07-04", // Independence Day
	"2025-09-01", // Labor Day
	"2025-11-27", // Thanksgiving
	"2025-12-25", // Christmas
}

var usHolidays2026 = []string{
	"2026-01-01", // New Year's Day
	"2026-01-19", // MLK Day
	"2026-02-16", // Presidents Day
	"2026-04-03", // Good Friday
	"2026-05-25", // Memorial Day
	"2026-06-19", // Juneteenth
	"2026-07-03", // Independence Day (observed)
	"2026-09-07", // Labor Day
	"2026-11-26", // Thanksgiving
	"2026-12-25", // Christmas
}

// IsUSHoliday checks whether t falls on a US market holiday
func IsUSHoliday(t time.Time) bool {
	dateStr := t.Format("2006-01-02")

	allHolidays := append(append(usHolidays2024, usHolidays2025...), usHolidays2026...)

	for _, h := range allHolidays {
		if h == dateStr {
			return true
		}
	}
	return false
}
