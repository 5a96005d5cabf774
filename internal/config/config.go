// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

// envPrefix is prepended to every environment variable, e.g. RISK_PORT.
const envPrefix = "RISK"

// Config holds application configuration
type Config struct {
	DataDir string `envconfig:"DATA_DIR" default:"data"` // Base directory for all databases (always absolute after Load)
	Port    int    `envconfig:"PORT" default:"8001"`
	DevMode bool   `envconfig:"DEV_MODE" default:"false"`
	Version string `envconfig:"VERSION" default:"dev"`

	Logging   LoggingConfig   `envconfig:"LOG"`
	Model     ModelConfig     `envconfig:"MODEL"`
	Cache     CacheConfig     `envconfig:"CACHE"`
	RateLimit RateLimitConfig `envconfig:"RATE_LIMIT"`
	Backup    BackupConfig    `envconfig:"BACKUP"`

	MaintenanceSchedule string `envconfig:"MAINTENANCE_SCHEDULE" default:"0 0 4 * * SUN"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Pretty bool   `envconfig:"PRETTY" default:"false"`
}

// ModelConfig holds defaults for the estimators and the optimizer
type ModelConfig struct {
	RiskFreeRate   float64 `envconfig:"RISK_FREE_RATE" default:"0.03"`
	AnalysisPeriod int     `envconfig:"ANALYSIS_PERIOD" default:"100"` // Most recent prices used per estimate
	FrontierSteps  int     `envconfig:"FRONTIER_STEPS" default:"5"`
}

// CacheConfig holds result cache settings
type CacheConfig struct {
	TTL             time.Duration `envconfig:"TTL" default:"24h"`
	CleanupSchedule string        `envconfig:"CLEANUP_SCHEDULE" default:"0 0 * * * *"`
}

// RateLimitConfig holds API rate limiting settings
type RateLimitConfig struct {
	RPS   float64 `envconfig:"RPS" default:"100"`
	Burst int     `envconfig:"BURST" default:"50"`
}

// BackupConfig holds S3-compatible cloud backup settings
type BackupConfig struct {
	Enabled         bool   `envconfig:"ENABLED" default:"false"`
	Bucket          string `envconfig:"BUCKET"`
	Region          string `envconfig:"REGION" default:"auto"`
	Endpoint        string `envconfig:"ENDPOINT"` // Empty uses the AWS endpoint for Region
	AccessKeyID     string `envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"SECRET_ACCESS_KEY"`
	Schedule        string `envconfig:"SCHEDULE" default:"0 0 3 * * *"`
	RetentionDays   int    `envconfig:"RETENTION_DAYS" default:"30"`
}

// Load reads configuration from environment variables, loading a .env file first when
// one exists.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Resolve to absolute path
	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path %q: %w", cfg.DataDir, err)
	}
	cfg.DataDir = absDataDir

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %q: %w", cfg.DataDir, err)
	}

	return &cfg, nil
}

// schedules are parsed with seconds, matching the scheduler.
var scheduleParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	if c.Model.RiskFreeRate <= -1 {
		return fmt.Errorf("risk free rate must exceed -1, got %v", c.Model.RiskFreeRate)
	}
	if c.Model.AnalysisPeriod < 3 {
		return fmt.Errorf("analysis period must be at least 3, got %d", c.Model.AnalysisPeriod)
	}
	if c.Model.FrontierSteps < 1 {
		return fmt.Errorf("frontier steps must be positive, got %d", c.Model.FrontierSteps)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %v", c.Cache.TTL)
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate limit must be positive, got %v rps burst %d", c.RateLimit.RPS, c.RateLimit.Burst)
	}

	schedules := map[string]string{
		"cache cleanup": c.Cache.CleanupSchedule,
		"maintenance":   c.MaintenanceSchedule,
	}
	if c.Backup.Enabled {
		if c.Backup.Bucket == "" {
			return fmt.Errorf("backup bucket is required when backups are enabled")
		}
		if c.Backup.RetentionDays < 1 {
			return fmt.Errorf("backup retention must be at least one day, got %d", c.Backup.RetentionDays)
		}
		schedules["backup"] = c.Backup.Schedule
	}
	for name, spec := range schedules {
		if _, err := scheduleParser.Parse(spec); err != nil {
			return fmt.Errorf("invalid %s schedule %q: %w", name, spec, err)
		}
	}
	return nil
}
