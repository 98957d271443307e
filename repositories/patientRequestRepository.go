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
	"gorm.io/gorm/clause"
)

type PatientRequestRepository struct {
	base
}

func NewPatientRequestRepository(tenants Tenants, cache *cache.Cache, logger zerolog.Logger) *PatientRequestRepository {
	return &PatientRequestRepository{base{tenants: tenants, cache: cache, logger: logger}}
}

// Create inserts a request inside tx.
func (r *PatientRequestRepository) Create(tx *gorm.DB, request *models.PatientRequest) error {
	if err := tx.Create(request).Error; err != nil {
		return fmt.Errorf("failed to create patient request: %w", err)
	}
	return nil
}

// FindByID loads a request. Unknown ids yield scheduling.ErrNotFound.
func (r *PatientRequestRepository) FindByID(ctx context.Context, id uint) (*models.PatientRequest, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	return r.find(db, id)
}

// Lock loads a request inside tx and holds its row until tx ends.
func (r *PatientRequestRepository) Lock(tx *gorm.DB, id uint) (*models.PatientRequest, error) {
	return r.find(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *PatientRequestRepository) find(db *gorm.DB, id uint) (*models.PatientRequest, error) {
	var request models.PatientRequest
	if err := db.First(&request, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, scheduling.NotFoundf("patient request %d", id)
		}
		return nil, fmt.Errorf("failed to get patient request: %w", err)
	}
	return &request, nil
}

// Transition moves a request from one status to another. It reports false
// when the request was no longer in from.
func (r *PatientRequestRepository) Transition(tx *gorm.DB, id uint, from, to string) (bool, error) {
	res := tx.Model(&models.PatientRequest{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update patient request: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListPending returns the pending requests, oldest first.
func (r *PatientRequestRepository) ListPending(ctx context.Context) ([]models.PatientRequest, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var requests []models.PatientRequest
	err = db.Where("status = ?", models.RequestPending).Order("created_at, id").Find(&requests).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list patient requests: %w", err)
	}
	return requests, nil
}
