package models

import (
	"DentalClinic/scheduling"
	"time"

	"gorm.io/gorm"
)

// Request statuses.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// WorkingHours model. DayOfWeek always holds a canonical scheduling.Weekday.
type WorkingHours struct {
	ID        uint   `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	MedicID   string `gorm:"column:medic_id;not null;uniqueIndex:idx_medic_day" json:"medic_id"`
	DayOfWeek string `gorm:"column:day_of_week;not null;uniqueIndex:idx_medic_day" json:"day_of_week"`
	StartTime string `gorm:"column:start_time" json:"start_time"`
	EndTime   string `gorm:"column:end_time" json:"end_time"`
}

func (WorkingHours) TableName() string {
	return "working_hours"
}

// BeforeSave normalizes the weekday and clock tokens.
func (w *WorkingHours) BeforeSave(tx *gorm.DB) error {
	day, err := scheduling.ParseWeekday(w.DayOfWeek)
	if err != nil {
		return err
	}
	w.DayOfWeek = string(day)
	if w.StartTime != "" {
		if w.StartTime, err = scheduling.NormalizeClock(w.StartTime); err != nil {
			return err
		}
	}
	if w.EndTime != "" {
		if w.EndTime, err = scheduling.NormalizeClock(w.EndTime); err != nil {
			return err
		}
	}
	return nil
}

// DayOff model. EndDate nil means a single day.
type DayOff struct {
	ID           uint    `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	MedicID      string  `gorm:"column:medic_id;not null;index" json:"medic_id"`
	Name         string  `gorm:"column:name" json:"name"`
	StartDate    string  `gorm:"column:start_date;not null" json:"start_date"`
	EndDate      *string `gorm:"column:end_date" json:"end_date"`
	RepeatYearly bool    `gorm:"column:repeat_yearly;not null" json:"repeat_yearly"`
}

func (DayOff) TableName() string {
	return "day_off"
}

// BeforeSave rejects spans that end before they start.
func (d *DayOff) BeforeSave(tx *gorm.DB) error {
	_, err := d.Span()
	return err
}

// Span converts the row to the calendar representation.
func (d DayOff) Span() (scheduling.DayOffSpan, error) {
	start, err := scheduling.ParseDate(d.StartDate, time.UTC)
	if err != nil {
		return scheduling.DayOffSpan{}, err
	}
	span := scheduling.DayOffSpan{Start: start, RepeatYearly: d.RepeatYearly}
	if d.EndDate != nil && *d.EndDate != "" {
		end, err := scheduling.ParseDate(*d.EndDate, time.UTC)
		if err != nil {
			return scheduling.DayOffSpan{}, err
		}
		if end.Before(start) {
			return scheduling.DayOffSpan{}, scheduling.Validationf("day off %q ends before it starts", d.Name)
		}
		span.End = &end
	}
	return span, nil
}

// AvailabilitySlot marks a booked or blocked range for a medic.
// The unique index keeps two reservations from landing on the same start.
type AvailabilitySlot struct {
	ID          uint      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	MedicID     *string   `gorm:"column:medic_id;uniqueIndex:idx_slot_medic_date_start" json:"medic_id"`
	Date        string    `gorm:"column:date;not null;uniqueIndex:idx_slot_medic_date_start" json:"date"`
	StartTime   string    `gorm:"column:start_time;not null;uniqueIndex:idx_slot_medic_date_start" json:"start_time"`
	EndTime     string    `gorm:"column:end_time;not null" json:"end_time"`
	IsAvailable bool      `gorm:"column:is_available;not null" json:"is_available"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (AvailabilitySlot) TableName() string {
	return "availability_slot"
}

// ClinicAvailability counts providers free for bookings not tied to a medic.
type ClinicAvailability struct {
	ID                 uint   `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Date               string `gorm:"column:date;not null;index" json:"date"`
	StartTime          string `gorm:"column:start_time;not null" json:"start_time"`
	EndTime            string `gorm:"column:end_time;not null" json:"end_time"`
	AvailableProviders int    `gorm:"column:available_providers;not null" json:"available_providers"`
}

func (ClinicAvailability) TableName() string {
	return "clinic_availability"
}

// PatientRequest is a patient's ask for an appointment, created only after its slot is reserved.
type PatientRequest struct {
	ID                   uint      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	PatientID            string    `gorm:"column:patient_id;not null;index" json:"patient_id"`
	MedicID              *string   `gorm:"column:medic_id;index" json:"medic_id"`
	RequestedDate        string    `gorm:"column:requested_date;not null" json:"requested_date"`
	RequestedTime        string    `gorm:"column:requested_time;not null" json:"requested_time"`
	Status               string    `gorm:"column:status;not null;check:status IN ('pending', 'approved', 'rejected')" json:"status"`
	Reason               string    `gorm:"column:reason" json:"reason"`
	Notes                string    `gorm:"column:notes" json:"notes"`
	AvailabilitySlotID   *uint     `gorm:"column:availability_slot_id" json:"availability_slot_id,omitempty"`
	ClinicAvailabilityID *uint     `gorm:"column:clinic_availability_id" json:"clinic_availability_id,omitempty"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (PatientRequest) TableName() string {
	return "patient_request"
}
