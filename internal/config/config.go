package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseDriver string
	DatabaseURL    string

	// Plant API configuration
	PlantAPIURL       string
	PlantAPITimeout   time.Duration
	PlantAPIRetries   int
	PlantAPIRateLimit float64

	// Extraction configuration
	ExtractBatchSize   int
	ExtractMaxFailures int

	// Object store configuration
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3BucketName      string
	S3UseSSL          bool
	S3DatasetPrefix   string

	// Scheduling configuration
	RetentionWindow time.Duration
	ETLInterval     time.Duration
	ExportInterval  time.Duration

	// Metrics configuration
	MetricsEnabled bool
	MetricsHost    string
	MetricsPort    int

	// Logging configuration
	LogLevel  string
	SentryDSN string
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Load reads configuration from environment variables, after loading any
// .env file in the working directory. Variables already set take precedence.
// It fails fast if required variables are missing.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		// Optional values with defaults
		DatabaseDriver:     getEnv("DATABASE_DRIVER", "sqlite"),
		PlantAPIURL:        getEnv("PLANT_API_URL", "https://tools.sigmalabs.co.uk/api"),
		PlantAPITimeout:    getEnvDuration("PLANT_API_TIMEOUT", 5*time.Second),
		PlantAPIRetries:    getEnvInt("PLANT_API_RETRIES", 3),
		PlantAPIRateLimit:  getEnvFloat("PLANT_API_RATE_LIMIT", 0),
		ExtractBatchSize:   getEnvInt("EXTRACT_BATCH_SIZE", 20),
		ExtractMaxFailures: getEnvInt("EXTRACT_MAX_FAILURES", 3),
		S3Endpoint:         getEnv("S3_ENDPOINT", "s3.amazonaws.com"),
		S3AccessKeyID:      os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey:  os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3Region:           getEnv("S3_REGION", "eu-west-2"),
		S3BucketName:       os.Getenv("S3_BUCKET_NAME"),
		S3UseSSL:           getEnvBool("S3_USE_SSL", true),
		S3DatasetPrefix:    getEnv("S3_DATASET_PREFIX", "input/daily_plant_summaries"),
		RetentionWindow:    getEnvDuration("RETENTION_WINDOW", 24*time.Hour),
		ETLInterval:        getEnvDuration("ETL_INTERVAL", time.Minute),
		ExportInterval:     getEnvDuration("EXPORT_INTERVAL", 24*time.Hour),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		MetricsHost:        getEnv("METRICS_HOST", "localhost"),
		MetricsPort:        getEnvInt("METRICS_PORT", 9090),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		SentryDSN:          os.Getenv("SENTRY_DSN"),
	}

	// Required values
	var missingVars []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missingVars = append(missingVars, "DATABASE_URL")
	}

	if len(missingVars) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "pgx" {
		return fmt.Errorf("DATABASE_DRIVER must be one of: sqlite, pgx")
	}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", "))
	}
	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		return fmt.Errorf("METRICS_PORT must be between 1 and 65535")
	}
	if c.ExtractBatchSize < 1 {
		return fmt.Errorf("EXTRACT_BATCH_SIZE must be at least 1")
	}
	if c.ExtractMaxFailures < 1 {
		return fmt.Errorf("EXTRACT_MAX_FAILURES must be at least 1")
	}
	if c.RetentionWindow <= 0 {
		return fmt.Errorf("RETENTION_WINDOW must be positive")
	}
	if c.ETLInterval <= 0 || c.ExportInterval <= 0 {
		return fmt.Errorf("ETL_INTERVAL and EXPORT_INTERVAL must be positive")
	}
	return nil
}

// ValidateExport checks the settings only the export path needs
func (c *Config) ValidateExport() error {
	var missingVars []string
	if c.S3AccessKeyID == "" {
		missingVars = append(missingVars, "S3_ACCESS_KEY_ID")
	}
	if c.S3SecretAccessKey == "" {
		missingVars = append(missingVars, "S3_SECRET_ACCESS_KEY")
	}
	if c.S3BucketName == "" {
		missingVars = append(missingVars, "S3_BUCKET_NAME")
	}
	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvFloat gets a float environment variable or returns a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvDuration gets a duration environment variable (e.g. "90s", "24h")
// or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
