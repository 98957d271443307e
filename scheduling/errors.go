package scheduling

import (
	"errors"
	"fmt"
)

// Domain errors shared by repositories, services and handlers.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("record not found")
	ErrConflict   = errors.New("slot conflict")
)

// Reason tells the patient why a slot cannot be booked.
type Reason string

const (
	ReasonAlreadyBooked       Reason = "already_booked"
	ReasonOutsideWorkingHours Reason = "outside_working_hours"
	ReasonDayOff              Reason = "day_off"
	ReasonClinicFullyBooked   Reason = "clinic_fully_booked"
)

// SlotError is returned when a requested date and time cannot be reserved.
type SlotError struct {
	Reason Reason
	Date   string
	Time   string
}

func (e *SlotError) Error() string {
	switch e.Reason {
	case ReasonAlreadyBooked:
		return fmt.Sprintf("slot %s %s is already booked", e.Date, e.Time)
	case ReasonOutsideWorkingHours:
		return fmt.Sprintf("slot %s %s is outside working hours", e.Date, e.Time)
	case ReasonDayOff:
		return fmt.Sprintf("%s is a day off", e.Date)
	case ReasonClinicFullyBooked:
		return fmt.Sprintf("clinic is fully booked on %s %s", e.Date, e.Time)
	}
	return fmt.Sprintf("slot %s %s is unavailable", e.Date, e.Time)
}

// Is makes every SlotError match ErrConflict.
func (e *SlotError) Is(target error) bool {
	return target == ErrConflict
}

// NewSlotError builds a SlotError for the given reason.
func NewSlotError(reason Reason, date, clock string) *SlotError {
	return &SlotError{Reason: reason, Date: date, Time: clock}
}

// Validationf wraps a formatted message with ErrValidation.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf wraps a formatted message with ErrNotFound.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
