package database

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

type contextKey string

const tenantKey contextKey = "tenant"

var tenantPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

// ErrUnknownTenant is returned when a request carries no usable tenant key.
var ErrUnknownTenant = errors.New("unknown tenant")

// ValidTenant reports whether key can be used to build a tenant DSN.
func ValidTenant(key string) bool {
	return tenantPattern.MatchString(key)
}

// WithTenant stores the tenant key in ctx.
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, tenantKey, tenant)
}

// TenantFromContext retrieves the tenant key stored by WithTenant.
func TenantFromContext(ctx context.Context) (string, error) {
	tenant, ok := ctx.Value(tenantKey).(string)
	if !ok || !ValidTenant(tenant) {
		return "", ErrUnknownTenant
	}
	return tenant, nil
}

// Opener opens the database of one tenant.
type Opener func(ctx context.Context, tenant string) (*gorm.DB, error)

// DSNOpener returns an Opener that formats the tenant key into dsnTemplate.
func DSNOpener(driver, dsnTemplate string, development bool) Opener {
	return func(ctx context.Context, tenant string) (*gorm.DB, error) {
		return InitDB(ctx, driver, fmt.Sprintf(dsnTemplate, tenant), development)
	}
}

// RetiredPoolGrace is how long an evicted tenant pool stays open for the
// requests that still hold it.
const RetiredPoolGrace = time.Minute

// TenantManager keeps a bounded set of open tenant databases. The least recently
// used pool is retired when the bound is exceeded and closed after a grace period.
type TenantManager struct {
	open    Opener
	pools   *lru.Cache[string, *gorm.DB]
	opening singleflight.Group
	grace   time.Duration
	logger  zerolog.Logger

	mu      sync.Mutex
	closed  bool
	retired map[*gorm.DB]*time.Timer
}

// NewTenantManager creates a TenantManager holding at most maxTenants open pools.
func NewTenantManager(maxTenants int, open Opener, logger zerolog.Logger) (*TenantManager, error) {
	if maxTenants <= 0 {
		maxTenants = 64
	}
	m := &TenantManager{
		open:    open,
		grace:   RetiredPoolGrace,
		logger:  logger,
		retired: make(map[*gorm.DB]*time.Timer),
	}
	pools, err := lru.NewWithEvict[string, *gorm.DB](maxTenants, m.retire)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create tenant pool cache")
	}
	m.pools = pools
	return m, nil
}

// DB returns the database of the tenant carried by ctx, bound to ctx.
func (m *TenantManager) DB(ctx context.Context) (*gorm.DB, error) {
	tenant, err := TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}
	db, err := m.Tenant(ctx, tenant)
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx), nil
}

// Tenant returns the database of tenant, opening and migrating it on first use.
// Concurrent first uses of one tenant share a single open; other tenants are
// served from the cache meanwhile.
func (m *TenantManager) Tenant(ctx context.Context, tenant string) (*gorm.DB, error) {
	if !ValidTenant(tenant) {
		return nil, ErrUnknownTenant
	}
	if db, ok := m.pools.Get(tenant); ok {
		return db, nil
	}

	v, err, _ := m.opening.Do(tenant, func() (interface{}, error) {
		if db, ok := m.pools.Get(tenant); ok {
			return db, nil
		}
		// the open is shared, so one caller giving up must not fail the others
		db, err := m.open(context.WithoutCancel(ctx), tenant)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open database of tenant %s", tenant)
		}
		m.pools.Add(tenant, db)
		m.logger.Info().Str("tenant", tenant).Msg("tenant database initialized")
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*gorm.DB), nil
}

// retire schedules the close of an evicted pool.
func (m *TenantManager) retire(tenant string, db *gorm.DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.grace <= 0 {
		m.closePool(tenant, db)
		return
	}
	m.retired[db] = time.AfterFunc(m.grace, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.retired[db]; !ok {
			return
		}
		delete(m.retired, db)
		m.closePool(tenant, db)
	})
	m.logger.Info().Str("tenant", tenant).Dur("grace", m.grace).Msg("tenant database retired")
}

func (m *TenantManager) closePool(tenant string, db *gorm.DB) {
	if err := closeDB(db); err != nil {
		m.logger.Warn().Err(err).Str("tenant", tenant).Msg("failed to close tenant database")
		return
	}
	m.logger.Info().Str("tenant", tenant).Msg("tenant database closed")
}

// Close closes every open and retired tenant database.
func (m *TenantManager) Close() {
	m.mu.Lock()
	m.closed = true
	for db, timer := range m.retired {
		timer.Stop()
		delete(m.retired, db)
		m.closePool("retired", db)
	}
	m.mu.Unlock()

	m.pools.Purge()
}
