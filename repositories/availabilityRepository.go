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

// AvailabilityRepository reads and writes the schedule of medics and the clinic.
type AvailabilityRepository struct {
	base
}

func NewAvailabilityRepository(tenants Tenants, cache *cache.Cache, logger zerolog.Logger) *AvailabilityRepository {
	return &AvailabilityRepository{base{tenants: tenants, cache: cache, logger: logger}}
}

// WorkingHours returns every weekday window of a medic.
func (r *AvailabilityRepository) WorkingHours(ctx context.Context, medicID string) ([]models.WorkingHours, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var hours []models.WorkingHours
	if err := db.Where("medic_id = ?", medicID).Find(&hours).Error; err != nil {
		return nil, fmt.Errorf("failed to get working hours: %w", err)
	}
	return hours, nil
}

// WorkingHoursForDay returns the window of one weekday, or nil when the medic does not work that day.
func (r *AvailabilityRepository) WorkingHoursForDay(ctx context.Context, medicID string, day scheduling.Weekday) (*models.WorkingHours, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var hours models.WorkingHours
	err = db.Where("medic_id = ? AND day_of_week = ?", medicID, string(day)).First(&hours).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get working hours: %w", err)
	}
	return &hours, nil
}

// ReplaceWorkingHours deletes the medic's weekly windows and writes hours in their place.
func (r *AvailabilityRepository) ReplaceWorkingHours(ctx context.Context, medicID string, hours []models.WorkingHours) error {
	return r.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("medic_id = ?", medicID).Delete(&models.WorkingHours{}).Error; err != nil {
			return fmt.Errorf("failed to delete working hours: %w", err)
		}
		if len(hours) == 0 {
			return nil
		}
		for i := range hours {
			hours[i].ID = 0
			hours[i].MedicID = medicID
		}
		if err := tx.Create(&hours).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return scheduling.Validationf("working hours repeat a weekday")
			}
			return fmt.Errorf("failed to create working hours: %w", err)
		}
		return nil
	})
}

// DaysOff returns the exception periods of a medic.
func (r *AvailabilityRepository) DaysOff(ctx context.Context, medicID string) ([]models.DayOff, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var daysOff []models.DayOff
	if err := db.Where("medic_id = ?", medicID).Order("start_date").Find(&daysOff).Error; err != nil {
		return nil, fmt.Errorf("failed to get days off: %w", err)
	}
	return daysOff, nil
}

// CreateDayOff stores a new exception period.
func (r *AvailabilityRepository) CreateDayOff(ctx context.Context, dayOff *models.DayOff) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}
	if err := db.Create(dayOff).Error; err != nil {
		if errors.Is(err, scheduling.ErrValidation) {
			return err
		}
		return fmt.Errorf("failed to create day off: %w", err)
	}
	return nil
}

// DeleteDayOff removes one exception period of a medic.
func (r *AvailabilityRepository) DeleteDayOff(ctx context.Context, medicID string, id uint) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}
	res := db.Where("id = ? AND medic_id = ?", id, medicID).Delete(&models.DayOff{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete day off: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return scheduling.NotFoundf("day off %d", id)
	}
	return nil
}

// BlockedSlots returns the unavailable slots of a medic on date.
func (r *AvailabilityRepository) BlockedSlots(ctx context.Context, medicID, date string) ([]models.AvailabilitySlot, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	return r.blockedSlots(db, medicID, date)
}

func (r *AvailabilityRepository) blockedSlots(db *gorm.DB, medicID, date string) ([]models.AvailabilitySlot, error) {
	var slots []models.AvailabilitySlot
	err := db.Where("medic_id = ? AND date = ? AND is_available = ?", medicID, date, false).
		Order("start_time").
		Find(&slots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get blocked slots: %w", err)
	}
	return slots, nil
}

// ClinicAvailabilityOn returns the clinic-wide windows of date that still have providers.
func (r *AvailabilityRepository) ClinicAvailabilityOn(ctx context.Context, date string) ([]models.ClinicAvailability, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var windows []models.ClinicAvailability
	err = db.Where("date = ? AND available_providers > 0", date).Order("start_time").Find(&windows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get clinic availability: %w", err)
	}
	return windows, nil
}

// ClinicAvailabilityBetween returns the clinic-wide windows dated first to last
// inclusive that still have providers.
func (r *AvailabilityRepository) ClinicAvailabilityBetween(ctx context.Context, first, last string) ([]models.ClinicAvailability, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var windows []models.ClinicAvailability
	err = db.Where("date >= ? AND date <= ? AND available_providers > 0", first, last).
		Order("date, start_time").
		Find(&windows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get clinic availability: %w", err)
	}
	return windows, nil
}

// FindClinicAvailability returns a window covering [start, end) on date with a free provider, or nil.
func (r *AvailabilityRepository) FindClinicAvailability(ctx context.Context, date, start, end string) (*models.ClinicAvailability, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	return r.findClinicAvailability(db, date, start, end)
}

func (r *AvailabilityRepository) findClinicAvailability(db *gorm.DB, date, start, end string) (*models.ClinicAvailability, error) {
	var window models.ClinicAvailability
	err := db.Where("date = ? AND start_time <= ? AND end_time >= ? AND available_providers > 0", date, start, end).
		Order("start_time").
		First(&window).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find clinic availability: %w", err)
	}
	return &window, nil
}

// ReserveSlot marks [start, end) of a medic on date as unavailable. It must run
// inside tx. The slot rows of the day are locked first; a concurrent insert on
// the same start is caught by the unique index.
func (r *AvailabilityRepository) ReserveSlot(tx *gorm.DB, medicID, date, start, end string) (*models.AvailabilitySlot, error) {
	requested, err := scheduling.NewInterval(start, end, 0)
	if err != nil {
		return nil, err
	}

	var daySlots []models.AvailabilitySlot
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("medic_id = ? AND date = ?", medicID, date).
		Find(&daySlots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock slots: %w", err)
	}

	var existing *models.AvailabilitySlot
	for i := range daySlots {
		slot := &daySlots[i]
		if slot.StartTime == start {
			existing = slot
		}
		if slot.IsAvailable {
			continue
		}
		blocked, err := scheduling.NewInterval(slot.StartTime, slot.EndTime, 0)
		if err != nil {
			return nil, err
		}
		if requested.Overlaps(blocked) {
			return nil, scheduling.NewSlotError(scheduling.ReasonAlreadyBooked, date, start)
		}
	}

	if existing != nil {
		res := tx.Model(&models.AvailabilitySlot{}).
			Where("id = ? AND is_available = ?", existing.ID, true).
			UpdateColumns(map[string]interface{}{"is_available": false, "end_time": end})
		if res.Error != nil {
			return nil, fmt.Errorf("failed to reserve slot: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, scheduling.NewSlotError(scheduling.ReasonAlreadyBooked, date, start)
		}
		existing.IsAvailable = false
		existing.EndTime = end
		return existing, nil
	}

	slot := &models.AvailabilitySlot{
		MedicID:     &medicID,
		Date:        date,
		StartTime:   start,
		EndTime:     end,
		IsAvailable: false,
	}
	if err := tx.Create(slot).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, scheduling.NewSlotError(scheduling.ReasonAlreadyBooked, date, start)
		}
		return nil, fmt.Errorf("failed to reserve slot: %w", err)
	}
	return slot, nil
}

// ReleaseSlot makes a reserved slot bookable again. It must run inside tx.
func (r *AvailabilityRepository) ReleaseSlot(tx *gorm.DB, slotID uint) error {
	err := tx.Model(&models.AvailabilitySlot{}).Where("id = ?", slotID).UpdateColumn("is_available", true).Error
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}
	return nil
}

// DecrementClinicAvailability takes one provider from the window covering
// [start, end) on date. The conditional update never drives the counter below zero.
func (r *AvailabilityRepository) DecrementClinicAvailability(tx *gorm.DB, date, start, end string) (*models.ClinicAvailability, error) {
	window, err := r.findClinicAvailability(tx, date, start, end)
	if err != nil {
		return nil, err
	}
	if window == nil {
		return nil, scheduling.NewSlotError(scheduling.ReasonClinicFullyBooked, date, start)
	}

	res := tx.Model(&models.ClinicAvailability{}).
		Where("id = ? AND available_providers > 0", window.ID).
		UpdateColumn("available_providers", gorm.Expr("available_providers - 1"))
	if res.Error != nil {
		return nil, fmt.Errorf("failed to decrement clinic availability: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, scheduling.NewSlotError(scheduling.ReasonClinicFullyBooked, date, start)
	}
	window.AvailableProviders--
	return window, nil
}

// IncrementClinicAvailability gives a provider back to a window. It must run inside tx.
func (r *AvailabilityRepository) IncrementClinicAvailability(tx *gorm.DB, id uint) error {
	err := tx.Model(&models.ClinicAvailability{}).
		Where("id = ?", id).
		UpdateColumn("available_providers", gorm.Expr("available_providers + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to increment clinic availability: %w", err)
	}
	return nil
}

// Settings returns the clinic settings row, or zero settings when none exists.
func (r *AvailabilityRepository) Settings(ctx context.Context) (*models.ClinicSettings, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var settings models.ClinicSettings
	err = db.Order("id").First(&settings).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get clinic settings: %w", err)
	}
	return &settings, nil
}

// Location returns the clinic timezone stored in clinic_settings, or fallback.
func (r *AvailabilityRepository) Location(ctx context.Context, fallback *time.Location) (*time.Location, error) {
	cacheKey := r.cacheKey(ctx, "clinic_timezone")
	var tz string
	if !r.getCached(ctx, cacheKey, &tz) {
		settings, err := r.Settings(ctx)
		if err != nil {
			return nil, err
		}
		tz = settings.Timezone
		r.setCached(ctx, cacheKey, tz)
	}
	if tz == "" {
		return fallback, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		r.logger.Warn().Err(err).Str("timezone", tz).Msg("invalid clinic timezone, using default")
		return fallback, nil
	}
	return loc, nil
}
