// Package scheduling holds the calendar rules of the clinic: time arithmetic,
// availability, appointment status and the formatted records pushed to clients.
// Nothing in here touches the database.
package scheduling

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout     = "2006-01-02"
	ClockLayout    = "15:04"
	minutesPerDay  = 24 * 60
	DefaultStep    = 60 * time.Minute
	DefaultWindow  = 90
	dateTimeLayout = DateLayout + " " + ClockLayout
)

// Weekday is the canonical day token stored with working hours.
type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
	Sunday    Weekday = "Sunday"
)

var weekdays = map[time.Weekday]Weekday{
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
	time.Sunday:    Sunday,
}

// DayName maps a date to its weekday token.
func DayName(date time.Time) Weekday {
	return weekdays[date.Weekday()]
}

// ParseWeekday normalizes "Mon", "monday", "MONDAY" and friends to the canonical token.
func ParseWeekday(s string) (Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if len(v) >= 3 {
		for _, day := range weekdays {
			full := strings.ToLower(string(day))
			if v == full || v == full[:3] {
				return day, nil
			}
		}
	}
	return "", Validationf("unknown weekday %q", s)
}

// ParseClock converts "HH:MM" (seconds are tolerated and ignored) to minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, Validationf("invalid time %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, Validationf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, Validationf("invalid minute in %q", s)
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NormalizeClock rewrites a clock string to its "HH:MM" form.
func NormalizeClock(s string) (string, error) {
	minutes, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return FormatClock(minutes), nil
}

// ParseDate parses a "YYYY-MM-DD" date in the given location.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, Validationf("invalid date %q", s)
	}
	return d, nil
}

// EndTime adds the treatment durations (minutes) to start and returns the end "HH:MM".
// The sum wraps modulo 24h with no day rollover: 23:00 plus 90 minutes is "00:30".
func EndTime(start string, durations []int) (string, error) {
	minutes, err := ParseClock(start)
	if err != nil {
		return "", err
	}
	for _, d := range durations {
		if d > 0 {
			minutes += d
		}
	}
	return FormatClock(minutes % minutesPerDay), nil
}

// DateRange returns days consecutive dates starting at start.
func DateRange(start time.Time, days int) []string {
	if days <= 0 {
		return nil
	}
	dates := make([]string, 0, days)
	for i := 0; i < days; i++ {
		dates = append(dates, start.AddDate(0, 0, i).Format(DateLayout))
	}
	return dates
}

// CurrentWeek returns the Monday and Sunday of the week containing now, in loc.
func CurrentWeek(now time.Time, loc *time.Location) (string, string) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	offset := (int(local.Weekday()) + 6) % 7
	monday := time.Date(local.Year(), local.Month(), local.Day()-offset, 0, 0, 0, 0, loc)
	return monday.Format(DateLayout), monday.AddDate(0, 0, 6).Format(DateLayout)
}
