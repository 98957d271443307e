package models

import (
	"DentalClinic/scheduling"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Appointment model. Status is a projection of IsDone, IsPaid and the scheduled
// date and time; see RefreshStatus.
type Appointment struct {
	AppointmentID string                 `gorm:"primaryKey;column:appointment_id" json:"appointment_id"`
	Date          string                 `gorm:"column:date;not null;index" json:"date"`
	Time          string                 `gorm:"column:time;not null" json:"time"`
	MedicUserID   string                 `gorm:"column:medic_user_id;not null;index" json:"medic_user_id"`
	PatientUserID string                 `gorm:"column:patient_user_id;not null;index" json:"patient_user_id"`
	Price         decimal.Decimal        `gorm:"column:price;type:numeric(12,2);not null;default:0" json:"price"`
	IsDone        bool                   `gorm:"column:is_done;not null" json:"is_done"`
	IsPaid        bool                   `gorm:"column:is_paid;not null" json:"is_paid"`
	Status        scheduling.Status      `gorm:"column:status;not null;index" json:"status"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	Medic         Medic                  `gorm:"foreignKey:MedicUserID;references:ID" json:"medic"`
	Patient       Patient                `gorm:"foreignKey:PatientUserID;references:ID" json:"patient"`
	Treatments    []AppointmentTreatment `gorm:"foreignKey:AppointmentID;references:AppointmentID" json:"treatments"`
}

func (Appointment) TableName() string {
	return "appointment"
}

// RefreshStatus recomputes Status from the flags, then applies the missed rule
// against now (which must be in the clinic's location).
func (a *Appointment) RefreshStatus(now time.Time) {
	a.Status = scheduling.DeriveStatus(a.IsDone, a.IsPaid)
	if scheduling.IsMissed(a.Status, a.IsDone, a.Date, a.Time, now) {
		a.Status = scheduling.StatusMissed
	}
}

// BeforeSave keeps Status consistent with the flags on every write path. A
// missed status survives only while the flags still derive upcoming.
func (a *Appointment) BeforeSave(tx *gorm.DB) error {
	derived := scheduling.DeriveStatus(a.IsDone, a.IsPaid)
	if a.Status == scheduling.StatusMissed && derived == scheduling.StatusUpcoming {
		return nil
	}
	a.Status = derived
	return nil
}

// Durations lists treatment durations in association order.
func (a Appointment) Durations() []int {
	durations := make([]int, 0, len(a.Treatments))
	for _, t := range a.Treatments {
		durations = append(durations, t.Treatment.Minutes())
	}
	return durations
}

// AppointmentTreatment joins an appointment to a treatment.
type AppointmentTreatment struct {
	ID            uint      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	AppointmentID string    `gorm:"column:appointment_id;not null;index" json:"appointment_id"`
	TreatmentID   uint      `gorm:"column:treatment_id;not null;index" json:"treatment_id"`
	Units         int       `gorm:"column:units;not null;default:1" json:"units"`
	InvolvedTeeth string    `gorm:"column:involved_teeth" json:"involved_teeth"`
	Prescription  string    `gorm:"column:prescription" json:"prescription"`
	Details       string    `gorm:"column:details" json:"details"`
	Treatment     Treatment `gorm:"foreignKey:TreatmentID;references:ID" json:"treatment"`
}

func (AppointmentTreatment) TableName() string {
	return "appointment_treatment"
}

// IDCounter backs per-prefix sequences that work on every supported driver.
type IDCounter struct {
	Prefix string `gorm:"primaryKey;column:prefix"`
	Value  int64  `gorm:"column:value;not null"`
}

func (IDCounter) TableName() string {
	return "id_counters"
}

// NextAppointmentID returns "AP" + YYMM + a 6 digit monthly sequence. Call it inside a transaction.
func NextAppointmentID(tx *gorm.DB, now time.Time) (string, error) {
	prefix := "AP" + now.Format("0601")
	value, err := NextSequence(tx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to allocate appointment id: %w", err)
	}
	return fmt.Sprintf("%s%06d", prefix, value), nil
}

// NextSequence increments and returns the counter stored under prefix.
func NextSequence(tx *gorm.DB, prefix string) (int64, error) {
	for attempt := 0; attempt < 2; attempt++ {
		res := tx.Model(&IDCounter{}).Where("prefix = ?", prefix).UpdateColumn("value", gorm.Expr("value + 1"))
		if res.Error != nil {
			return 0, fmt.Errorf("failed to advance sequence %s: %w", prefix, res.Error)
		}
		if res.RowsAffected == 0 {
			res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&IDCounter{Prefix: prefix, Value: 1})
			if res.Error != nil {
				return 0, fmt.Errorf("failed to start sequence %s: %w", prefix, res.Error)
			}
			if res.RowsAffected == 0 {
				// another transaction created the row first
				continue
			}
		}

		var counter IDCounter
		if err := tx.First(&counter, "prefix = ?", prefix).Error; err != nil {
			return 0, fmt.Errorf("failed to read sequence %s: %w", prefix, err)
		}
		return counter.Value, nil
	}
	return 0, fmt.Errorf("sequence %s is contended", prefix)
}
