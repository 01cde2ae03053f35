package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// MLB Stats API
	MLBBaseURL string        `envconfig:"MLB_BASE_URL" default:"https://statsapi.mlb.com/api/v1"`
	MLBTimeout time.Duration `envconfig:"MLB_TIMEOUT" default:"30s"`

	// Reference clock for day boundaries
	ReferenceTimezone string `envconfig:"REFERENCE_TIMEZONE" default:"America/Chicago"`
	DailyBoundaryHour int    `envconfig:"DAILY_BOUNDARY_HOUR" default:"3"`
	FastGraceMinutes  int    `envconfig:"FAST_GRACE_MINUTES" default:"10"`

	// Ranking and ledger
	EliteThreshold     float64 `envconfig:"ELITE_THRESHOLD" default:"2.5"`
	ExpectedDailyFloor int     `envconfig:"EXPECTED_DAILY_FLOOR" default:"10"`

	// Store backend: file, postgres or redis
	StoreBackend string `envconfig:"STORE_BACKEND" default:"file"`
	DataDir      string `envconfig:"DATA_DIR" default:"data"`

	// Backups
	BackupDir           string        `envconfig:"BACKUP_DIR" default:"backups"`
	BackupMaxAge        time.Duration `envconfig:"BACKUP_MAX_AGE" default:"24h"`
	BackupRetentionDays int           `envconfig:"BACKUP_RETENTION_DAYS" default:"30"`

	// Database (postgres backend)
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"mlbhits"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"mlbhits_user"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" default:""`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis (redis backend)
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Query surface
	APIPort int `envconfig:"API_PORT" default:"8080"`

	// Scheduler
	EnableScheduler    bool   `envconfig:"ENABLE_SCHEDULER" default:"true"`
	IntegritySweepCron string `envconfig:"INTEGRITY_SWEEP_CRON" default:"0 8 * * *"`
	ReconcileCron      string `envconfig:"RECONCILE_CRON" default:"30 4 * * *"`
	BackupCleanupCron  string `envconfig:"BACKUP_CLEANUP_CRON" default:"0 6 * * 0"`

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.ReferenceTimezone); err != nil {
		return fmt.Errorf("invalid REFERENCE_TIMEZONE %q: %w", c.ReferenceTimezone, err)
	}

	if c.DailyBoundaryHour < 0 || c.DailyBoundaryHour > 23 {
		return fmt.Errorf("DAILY_BOUNDARY_HOUR must be between 0 and 23")
	}

	if c.EliteThreshold <= 0 {
		return fmt.Errorf("ELITE_THRESHOLD must be positive")
	}

	switch c.StoreBackend {
	case "file", "postgres", "redis":
	default:
		return fmt.Errorf("STORE_BACKEND must be file, postgres or redis, got %q", c.StoreBackend)
	}

	if c.StoreBackend == "postgres" && c.DatabasePassword == "" && c.IsProduction() {
		return fmt.Errorf("DATABASE_PASSWORD is required for the postgres backend in production")
	}

	return nil
}

// Location returns the parsed reference timezone. Validate guarantees it
// parses; a bad zone after that point falls back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ReferenceTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FastGrace returns the fast partition's grace window as a duration.
func (c *Config) FastGrace() time.Duration {
	return time.Duration(c.FastGraceMinutes) * time.Minute
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
