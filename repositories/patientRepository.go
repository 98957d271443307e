package repositories

import (
	"DentalClinic/cache"
	"DentalClinic/models"
	"DentalClinic/scheduling"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type PatientRepository struct {
	base
}

func NewPatientRepository(tenants Tenants, cache *cache.Cache, logger zerolog.Logger) *PatientRepository {
	return &PatientRepository{base{tenants: tenants, cache: cache, logger: logger}}
}

// GetByID loads a patient. Unknown ids yield scheduling.ErrNotFound.
func (r *PatientRepository) GetByID(ctx context.Context, id string) (*models.Patient, error) {
	cacheKey := r.getPatientCacheKey(ctx, id)
	var patient models.Patient
	if r.getCached(ctx, cacheKey, &patient) {
		return &patient, nil
	}

	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	if err := db.First(&patient, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, scheduling.NotFoundf("patient %s", id)
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	r.setCached(ctx, cacheKey, patient)
	return &patient, nil
}

func (r *PatientRepository) getPatientCacheKey(ctx context.Context, id string) string {
	return r.cacheKey(ctx, "patient_cache:%s", id)
}
