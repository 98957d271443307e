package repositories

import (
	"DentalClinic/cache"
	"DentalClinic/database"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// CacheExpiry is how long lookups of rarely changing records stay cached.
const CacheExpiry = 24 * time.Hour

// Tenants resolves the database of the tenant carried by a context.
type Tenants interface {
	DB(ctx context.Context) (*gorm.DB, error)
}

// base is embedded by every repository.
type base struct {
	tenants Tenants
	cache   *cache.Cache
	logger  zerolog.Logger
}

func (b *base) db(ctx context.Context) (*gorm.DB, error) {
	db, err := b.tenants.DB(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tenant database: %w", err)
	}
	return db, nil
}

// Transaction runs fn in one transaction on the tenant database.
func (b *base) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	db, err := b.db(ctx)
	if err != nil {
		return err
	}
	return db.Transaction(fn)
}

// cacheKey prefixes key with the tenant so clinics never share entries.
func (b *base) cacheKey(ctx context.Context, format string, args ...interface{}) string {
	tenant, _ := database.TenantFromContext(ctx)
	return tenant + ":" + fmt.Sprintf(format, args...)
}

func (b *base) getCached(ctx context.Context, key string, dest interface{}) bool {
	if !b.cache.Enabled() {
		return false
	}
	found, err := b.cache.GetJSON(ctx, key, dest)
	if err != nil {
		b.logger.Warn().Err(err).Str("key", key).Msg("failed to read cache")
		return false
	}
	return found
}

func (b *base) setCached(ctx context.Context, key string, value interface{}) {
	if !b.cache.Enabled() {
		return
	}
	if err := b.cache.SetJSON(ctx, key, value, CacheExpiry); err != nil {
		b.logger.Warn().Err(err).Str("key", key).Msg("failed to write cache")
	}
}

func (b *base) invalidate(ctx context.Context, keys ...string) {
	if !b.cache.Enabled() {
		return
	}
	for _, key := range keys {
		if err := b.cache.Delete(ctx, key); err != nil {
			b.logger.Warn().Err(err).Str("key", key).Msg("failed to delete cache")
		}
	}
}
