package utils

import (
	"DentalClinic/scheduling"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Validation errors
var (
	ErrInvalidDate    = errors.New("must be a date in YYYY-MM-DD format")
	ErrInvalidClock   = errors.New("must be a time in HH:MM format")
	ErrInvalidWeekday = errors.New("must be a day of the week")
	ErrInvalidStatus  = errors.New("must be one of upcoming, done, missed, not-paid")
)

// Date validates an optional "YYYY-MM-DD" string.
var Date = validation.By(func(value interface{}) error {
	s := stringValue(value)
	if s == "" {
		return nil
	}
	if _, err := scheduling.ParseDate(s, nil); err != nil {
		return ErrInvalidDate
	}
	return nil
})

// Clock validates an optional "HH:MM" string.
var Clock = validation.By(func(value interface{}) error {
	s := stringValue(value)
	if s == "" {
		return nil
	}
	if _, err := scheduling.ParseClock(s); err != nil {
		return ErrInvalidClock
	}
	return nil
})

// Weekday validates a day token in any accepted spelling.
var Weekday = validation.By(func(value interface{}) error {
	s := stringValue(value)
	if s == "" {
		return nil
	}
	if _, err := scheduling.ParseWeekday(s); err != nil {
		return ErrInvalidWeekday
	}
	return nil
})

// Status validates an optional appointment status token.
var Status = validation.By(func(value interface{}) error {
	s := stringValue(value)
	if s == "" {
		return nil
	}
	if _, err := scheduling.ParseStatus(s); err != nil {
		return ErrInvalidStatus
	}
	return nil
})

// stringValue unwraps strings and string pointers; anything else reads as empty.
func stringValue(value interface{}) string {
	v, isNil := validation.Indirect(value)
	if isNil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// AsValidationError tags an ozzo error so callers can match scheduling.ErrValidation.
func AsValidationError(err error) error {
	if err == nil {
		return nil
	}
	return scheduling.Validationf("%s", err.Error())
}
