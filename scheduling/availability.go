package scheduling

import (
	"sort"
	"time"
)

// WorkingWindow is a medic's bookable window for one weekday, as "HH:MM" bounds.
type WorkingWindow struct {
	Start string
	End   string
}

// Minutes returns the window bounds in minutes since midnight. ok is false when
// the window is missing a bound, malformed or empty.
func (w WorkingWindow) Minutes() (start, end int, ok bool) {
	if w.Start == "" || w.End == "" {
		return 0, 0, false
	}
	start, err := ParseClock(w.Start)
	if err != nil {
		return 0, 0, false
	}
	end, err = ParseClock(w.End)
	if err != nil || end <= start {
		return 0, 0, false
	}
	return start, end, true
}

// WeeklyHours maps each weekday to its working window. Missing days are not bookable.
type WeeklyHours map[Weekday]WorkingWindow

// DayOffSpan is an exception period. A nil End means a single day. RepeatYearly
// spans match on month and day in any year.
type DayOffSpan struct {
	Start        time.Time
	End          *time.Time
	RepeatYearly bool
}

// Covers reports whether date falls inside the span.
func (d DayOffSpan) Covers(date time.Time) bool {
	end := d.Start
	if d.End != nil {
		end = *d.End
	}
	if d.RepeatYearly {
		x := monthDay(date)
		s, e := monthDay(d.Start), monthDay(end)
		if s <= e {
			return x >= s && x <= e
		}
		// span crosses the new year, e.g. Dec 30 - Jan 2
		return x >= s || x <= e
	}
	day := date.Format(DateLayout)
	return day >= d.Start.Format(DateLayout) && day <= end.Format(DateLayout)
}

func monthDay(t time.Time) int {
	return int(t.Month())*100 + t.Day()
}

// IsDayOff reports whether any span covers date.
func IsDayOff(date time.Time, daysOff []DayOffSpan) bool {
	for _, span := range daysOff {
		if span.Covers(date) {
			return true
		}
	}
	return false
}

// Interval is a half-open [Start, End) range in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// Overlaps uses half-open semantics: touching intervals do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && i.End > other.Start
}

// NewInterval parses "HH:MM" bounds. An empty or non-increasing end is
// treated as a one-step block starting at start.
func NewInterval(start, end string, step time.Duration) (Interval, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Interval{}, err
	}
	if end == "" {
		return Interval{Start: s, End: s + stepMinutes(step)}, nil
	}
	e, err := ParseClock(end)
	if err != nil {
		return Interval{}, err
	}
	if e <= s {
		e = s + stepMinutes(step)
	}
	return Interval{Start: s, End: e}, nil
}

func stepMinutes(step time.Duration) int {
	m := int(step / time.Minute)
	if m <= 0 {
		return int(DefaultStep / time.Minute)
	}
	return m
}

// AvailableDates keeps the dates that are not days off and have working hours on their weekday.
func AvailableDates(dates []time.Time, hours WeeklyHours, daysOff []DayOffSpan) []string {
	available := make([]string, 0, len(dates))
	for _, date := range dates {
		if IsDayOff(date, daysOff) {
			continue
		}
		if _, _, ok := hours[DayName(date)].Minutes(); !ok {
			continue
		}
		available = append(available, date.Format(DateLayout))
	}
	return available
}

// Steps walks the working window of date in fixed steps and returns every step
// that fits entirely inside the window, before any blocking is applied.
func Steps(date time.Time, hours WeeklyHours, step time.Duration) []Interval {
	start, end, ok := hours[DayName(date)].Minutes()
	if !ok {
		return nil
	}
	size := stepMinutes(step)
	var steps []Interval
	for cursor := start; cursor+size <= end; cursor += size {
		steps = append(steps, Interval{Start: cursor, End: cursor + size})
	}
	return steps
}

// AvailableTimeSlots returns the "HH:MM" start of every step on date that is
// inside working hours, not on a day off and not overlapping a blocked interval.
func AvailableTimeSlots(date time.Time, hours WeeklyHours, daysOff []DayOffSpan, blocked []Interval, step time.Duration) []string {
	if IsDayOff(date, daysOff) {
		return []string{}
	}
	slots := []string{}
	for _, s := range Steps(date, hours, step) {
		if overlapsAny(s, blocked) {
			continue
		}
		slots = append(slots, FormatClock(s.Start))
	}
	return slots
}

func overlapsAny(i Interval, blocked []Interval) bool {
	for _, b := range blocked {
		if i.Overlaps(b) {
			return true
		}
	}
	return false
}

// ExplainSlot returns nil when clock on date is an offered step, otherwise a
// SlotError saying why it is not.
func ExplainSlot(date time.Time, clock string, hours WeeklyHours, daysOff []DayOffSpan, blocked []Interval, step time.Duration) error {
	day := date.Format(DateLayout)
	if IsDayOff(date, daysOff) {
		return NewSlotError(ReasonDayOff, day, clock)
	}
	minutes, err := ParseClock(clock)
	if err != nil {
		return err
	}
	for _, s := range Steps(date, hours, step) {
		if s.Start != minutes {
			continue
		}
		if overlapsAny(s, blocked) {
			return NewSlotError(ReasonAlreadyBooked, day, clock)
		}
		return nil
	}
	return NewSlotError(ReasonOutsideWorkingHours, day, clock)
}

// WindowSlots steps through every window and returns the sorted, distinct
// "HH:MM" starts of the steps that fit inside one. It serves the clinic-wide
// pool, where windows come from capacity rows instead of a medic's hours.
func WindowSlots(windows []WorkingWindow, step time.Duration) []string {
	size := stepMinutes(step)
	seen := make(map[int]struct{})
	for _, w := range windows {
		start, end, ok := w.Minutes()
		if !ok {
			continue
		}
		for cursor := start; cursor+size <= end; cursor += size {
			seen[cursor] = struct{}{}
		}
	}
	starts := make([]int, 0, len(seen))
	for m := range seen {
		starts = append(starts, m)
	}
	sort.Ints(starts)
	slots := make([]string, 0, len(starts))
	for _, m := range starts {
		slots = append(slots, FormatClock(m))
	}
	return slots
}
