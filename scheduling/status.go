package scheduling

import (
	"strings"
	"time"
)

// Status is the cached lifecycle projection of an appointment.
type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusDone     Status = "done"
	StatusMissed   Status = "missed"
	StatusNotPaid  Status = "not-paid"
)

// ParseStatus accepts the canonical tokens plus the "notpaid"/"not_paid" spellings.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "upcoming":
		return StatusUpcoming, nil
	case "done":
		return StatusDone, nil
	case "missed":
		return StatusMissed, nil
	case "not-paid", "notpaid", "not_paid":
		return StatusNotPaid, nil
	}
	return "", Validationf("unknown status %q", s)
}

// DeriveStatus maps the done and paid flags to a status.
//
//	isDone isPaid -> status
//	false  false  -> upcoming
//	true   true   -> done
//	true   false  -> not-paid
//	false  true   -> upcoming
func DeriveStatus(isDone, isPaid bool) Status {
	switch {
	case isDone && isPaid:
		return StatusDone
	case isDone:
		return StatusNotPaid
	default:
		return StatusUpcoming
	}
}

// IsMissed reports whether an untouched upcoming appointment at date+clock is strictly in the past.
// now must already be in the clinic's location.
func IsMissed(status Status, isDone bool, date, clock string, now time.Time) bool {
	if status != StatusUpcoming || isDone {
		return false
	}
	return date+" "+clock < now.Format(dateTimeLayout)
}

// Cutoff splits now into the date and clock the missed sweep compares against.
func Cutoff(now time.Time) (string, string) {
	return now.Format(DateLayout), now.Format(ClockLayout)
}
