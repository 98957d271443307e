package repositories

import (
	"DentalClinic/cache"
	"DentalClinic/models"
	"DentalClinic/scheduling"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AppointmentRepository struct {
	base
}

func NewAppointmentRepository(tenants Tenants, cache *cache.Cache, logger zerolog.Logger) *AppointmentRepository {
	return &AppointmentRepository{base{tenants: tenants, cache: cache, logger: logger}}
}

// withDetails eager-loads everything a formatted record needs.
func withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Medic", func(db *gorm.DB) *gorm.DB {
			return db.Select("id, first_name, last_name")
		}).
		Preload("Patient", func(db *gorm.DB) *gorm.DB {
			return db.Select("id, first_name, last_name")
		}).
		Preload("Treatments", func(db *gorm.DB) *gorm.DB {
			return db.Order("id")
		}).
		Preload("Treatments.Treatment")
}

// FindByID loads an appointment with medic, patient and treatments.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var appointment models.Appointment
	if err := withDetails(db).First(&appointment, "appointment_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, scheduling.NotFoundf("appointment %s", id)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

// FindInRange returns appointments dated within [startDate, endDate], optionally for one medic.
func (r *AppointmentRepository) FindInRange(ctx context.Context, startDate, endDate, medicID string) ([]models.Appointment, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	query := withDetails(db).Where("date >= ? AND date <= ?", startDate, endDate)
	if medicID != "" {
		query = query.Where("medic_user_id = ?", medicID)
	}
	var appointments []models.Appointment
	if err := query.Order("date, time, appointment_id").Find(&appointments).Error; err != nil {
		return nil, fmt.Errorf("failed to get appointments: %w", err)
	}
	return appointments, nil
}

// Create assigns the next appointment id and stores the appointment with its treatments.
func (r *AppointmentRepository) Create(ctx context.Context, appointment *models.Appointment, treatments []models.AppointmentTreatment, now time.Time) error {
	return r.Transaction(ctx, func(tx *gorm.DB) error {
		id, err := models.NextAppointmentID(tx, now)
		if err != nil {
			return err
		}
		appointment.AppointmentID = id
		if err := tx.Omit(clause.Associations).Create(appointment).Error; err != nil {
			return fmt.Errorf("failed to create appointment: %w", err)
		}
		return r.insertTreatments(tx, id, treatments)
	})
}

// Save writes the appointment columns. When treatments is non-nil the
// association list is replaced in the same transaction.
func (r *AppointmentRepository) Save(ctx context.Context, appointment *models.Appointment, treatments []models.AppointmentTreatment) error {
	return r.Transaction(ctx, func(tx *gorm.DB) error {
		res := tx.Omit(clause.Associations).
			Model(appointment).
			Select("date", "time", "medic_user_id", "patient_user_id", "price", "is_done", "is_paid", "status", "updated_at").
			Updates(appointment)
		if res.Error != nil {
			return fmt.Errorf("failed to save appointment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return scheduling.NotFoundf("appointment %s", appointment.AppointmentID)
		}
		if treatments == nil {
			return nil
		}
		if err := tx.Where("appointment_id = ?", appointment.AppointmentID).Delete(&models.AppointmentTreatment{}).Error; err != nil {
			return fmt.Errorf("failed to delete appointment treatments: %w", err)
		}
		return r.insertTreatments(tx, appointment.AppointmentID, treatments)
	})
}

func (r *AppointmentRepository) insertTreatments(tx *gorm.DB, appointmentID string, treatments []models.AppointmentTreatment) error {
	if len(treatments) == 0 {
		return nil
	}
	for i := range treatments {
		treatments[i].ID = 0
		treatments[i].AppointmentID = appointmentID
		if treatments[i].Units <= 0 {
			treatments[i].Units = 1
		}
	}
	if err := tx.Omit("Treatment").Create(&treatments).Error; err != nil {
		return fmt.Errorf("failed to create appointment treatments: %w", err)
	}
	return nil
}

// Delete removes an appointment and its treatment rows.
func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	return r.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("appointment_id = ?", id).Delete(&models.AppointmentTreatment{}).Error; err != nil {
			return fmt.Errorf("failed to delete appointment treatments: %w", err)
		}
		res := tx.Where("appointment_id = ?", id).Delete(&models.Appointment{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete appointment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return scheduling.NotFoundf("appointment %s", id)
		}
		return nil
	})
}

// SweepMissed moves every untouched upcoming appointment scheduled strictly
// before now to missed. now must be in the clinic's location. Running it
// again with the same now changes nothing.
func (r *AppointmentRepository) SweepMissed(ctx context.Context, now time.Time) (int64, error) {
	db, err := r.db(ctx)
	if err != nil {
		return 0, err
	}
	date, clock := scheduling.Cutoff(now)
	res := db.Model(&models.Appointment{}).
		Where("status = ? AND is_done = ?", scheduling.StatusUpcoming, false).
		Where("date < ? OR (date = ? AND time < ?)", date, date, clock).
		UpdateColumn("status", scheduling.StatusMissed)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to sweep missed appointments: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Treatments loads the treatments with the given ids. Unknown ids yield scheduling.ErrNotFound.
func (r *AppointmentRepository) Treatments(ctx context.Context, ids []uint) (map[uint]models.Treatment, error) {
	found := make(map[uint]models.Treatment, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var treatments []models.Treatment
	if err := db.Where("id IN ?", ids).Find(&treatments).Error; err != nil {
		return nil, fmt.Errorf("failed to get treatments: %w", err)
	}
	for _, t := range treatments {
		found[t.ID] = t
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, scheduling.NotFoundf("treatment %d", id)
		}
	}
	return found, nil
}
