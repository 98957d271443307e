package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// AppConfig holds the application configuration
type AppConfig struct {
	Env      string `env:"APP_ENV" envDefault:"production"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8930"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// BaseDomain is stripped from the request host to find the clinic subdomain.
	BaseDomain string `env:"BASE_DOMAIN" envDefault:"localhost"`

	Database DatabaseConfig
	Redis    RedisConfig
	Clinic   ClinicConfig
	SMTP     SMTPConfig
	HTTP     HTTPConfig

	BearerToken  string `env:"BEARER_TOKEN,required"`
	SymmetricKey string `env:"SYMMETRIC_KEY,required"`
}

// DatabaseConfig describes how tenant databases are reached.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"postgres"`
	// DSNTemplate contains a single %s that is replaced by the tenant key.
	DSNTemplate string `env:"DB_DSN_TEMPLATE,required"`
	MaxTenants  int    `env:"DB_MAX_TENANTS" envDefault:"64"`
}

// RedisConfig holds the redis connection settings. An empty URL disables redis.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"30s"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"5"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"10s"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
}

// ClinicConfig carries scheduling defaults used when a clinic has no settings of its own.
type ClinicConfig struct {
	Timezone           string `env:"CLINIC_TIMEZONE" envDefault:"UTC"`
	AvailabilityWindow int    `env:"AVAILABILITY_WINDOW_DAYS" envDefault:"90"`
	SlotStepMinutes    int    `env:"SLOT_STEP_MINUTES" envDefault:"60"`
}

// SMTPConfig enables request notifications when Host is set.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	User     string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASS"`
}

// HTTPConfig holds the HTTP middleware settings.
type HTTPConfig struct {
	AllowedOrigins string        `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`
	RateLimitRPS   float64       `env:"RATE_LIMIT_RPS" envDefault:"15"`
	RateLimitBurst int           `env:"RATE_LIMIT_BURST" envDefault:"30"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
}

// Load reads an optional .env file and then the environment.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse configuration")
	}
	if len(cfg.SymmetricKey) != 32 {
		return nil, errors.Errorf("SYMMETRIC_KEY must be 32 bytes long, got %d", len(cfg.SymmetricKey))
	}
	if !strings.Contains(cfg.Database.DSNTemplate, "%s") {
		return nil, errors.New("DB_DSN_TEMPLATE must contain %s for the tenant key")
	}
	if cfg.Clinic.SlotStepMinutes <= 0 {
		cfg.Clinic.SlotStepMinutes = 60
	}
	if cfg.Clinic.AvailabilityWindow <= 0 {
		cfg.Clinic.AvailabilityWindow = 90
	}
	return cfg, nil
}

// GetBearerToken returns the BearerToken from the config
func (c *AppConfig) GetBearerToken() string {
	return c.BearerToken
}

// IsDevelopment reports whether the process runs with development defaults.
func (c *AppConfig) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// Origins splits ALLOWED_ORIGINS into a list.
func (c *AppConfig) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.HTTP.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// SlotStep returns the booking granularity.
func (c *ClinicConfig) SlotStep() time.Duration {
	return time.Duration(c.SlotStepMinutes) * time.Minute
}

// Location resolves the default clinic timezone, falling back to UTC.
func (c *ClinicConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
