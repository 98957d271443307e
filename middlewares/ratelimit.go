package middlewares

import (
	"DentalClinic/database"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// RateLimiterConfig holds the configuration for the rate limiter
type RateLimiterConfig struct {
	RequestsPerSecond float64
	Burst             int
	// MaxTenants bounds how many tenant limiters are remembered.
	MaxTenants int
}

// tenantLimiters hands out one token bucket per tenant.
type tenantLimiters struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	config   RateLimiterConfig
}

func (t *tenantLimiters) get(tenant string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	if limiter, ok := t.limiters.Get(tenant); ok {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Limit(t.config.RequestsPerSecond), t.config.Burst)
	t.limiters.Add(tenant, limiter)
	return limiter
}

// NewRateLimiterMiddleware limits requests per tenant so one clinic cannot starve the others.
func NewRateLimiterMiddleware(config RateLimiterConfig) gin.HandlerFunc {
	if config.MaxTenants <= 0 {
		config.MaxTenants = 1024
	}
	limiters, err := lru.New[string, *rate.Limiter](config.MaxTenants)
	if err != nil {
		panic(err)
	}
	data := &tenantLimiters{limiters: limiters, config: config}

	return func(c *gin.Context) {
		tenant, _ := database.TenantFromContext(c.Request.Context())
		if !data.get(tenant).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
