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

type MedicRepository struct {
	base
}

func NewMedicRepository(tenants Tenants, cache *cache.Cache, logger zerolog.Logger) *MedicRepository {
	return &MedicRepository{base{tenants: tenants, cache: cache, logger: logger}}
}

// GetByID loads a medic without associations. Unknown ids yield scheduling.ErrNotFound.
func (r *MedicRepository) GetByID(ctx context.Context, id string) (*models.Medic, error) {
	cacheKey := r.getMedicCacheKey(ctx, id)
	var medic models.Medic
	if r.getCached(ctx, cacheKey, &medic) {
		return &medic, nil
	}

	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	err = db.Select("id, first_name, last_name, email, created_at").First(&medic, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, scheduling.NotFoundf("medic %s", id)
		}
		return nil, fmt.Errorf("failed to get medic: %w", err)
	}

	r.setCached(ctx, cacheKey, medic)
	return &medic, nil
}

func (r *MedicRepository) getMedicCacheKey(ctx context.Context, id string) string {
	return r.cacheKey(ctx, "medic_cache:%s", id)
}
