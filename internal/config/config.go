package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all worker configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Queue      QueueConfig
	AWS        AWSConfig
	Ingest     IngestConfig
	Projection ProjectionConfig
	CORS       CORSConfig
}

// ServerConfig holds the operational HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// QueueConfig holds the SQS polling configuration.
// VisibilityTimeout is the processing lease: it must cover the worst-case
// archive, or an in-flight job becomes visible again and is redelivered.
type QueueConfig struct {
	URL               string
	WaitTime          time.Duration
	VisibilityTimeout time.Duration
	IdleSleep         time.Duration
}

// AWSConfig holds shared AWS client configuration.
// Endpoint is optional and only set for local stacks.
type AWSConfig struct {
	Region   string
	Endpoint string
}

// IngestConfig holds ingestion tuning values.
type IngestConfig struct {
	// WorkDir is the parent directory for per-job extraction directories.
	// Empty means the system temp directory.
	WorkDir string
	// AreaRaiDivisor converts square meters to rai (1600 m² = 1 rai).
	AreaRaiDivisor float64
}

// ProjectionConfig holds the fixed source projection of incoming shapefiles.
type ProjectionConfig struct {
	UTMZone  int
	Northern bool
}

// CORSConfig holds CORS configuration for the operational endpoints.
type CORSConfig struct {
	Origins []string
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "cadastre")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("AWS_REGION", "ap-southeast-1")
	v.SetDefault("AWS_ENDPOINT", "")
	v.SetDefault("QUEUE_WAIT_SECONDS", 20)
	v.SetDefault("QUEUE_VISIBILITY_SECONDS", 900)
	v.SetDefault("QUEUE_IDLE_SLEEP_MS", 2000)
	v.SetDefault("WORK_DIR", "")
	v.SetDefault("AREA_RAI_DIVISOR", 1600.0)
	v.SetDefault("UTM_ZONE", 48)
	v.SetDefault("UTM_NORTHERN", true)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind environment variables
	v.AutomaticEnv()

	// Build configuration
	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		Queue: QueueConfig{
			URL:               v.GetString("QUEUE_URL"),
			WaitTime:          time.Duration(v.GetInt("QUEUE_WAIT_SECONDS")) * time.Second,
			VisibilityTimeout: time.Duration(v.GetInt("QUEUE_VISIBILITY_SECONDS")) * time.Second,
			IdleSleep:         time.Duration(v.GetInt("QUEUE_IDLE_SLEEP_MS")) * time.Millisecond,
		},
		AWS: AWSConfig{
			Region:   v.GetString("AWS_REGION"),
			Endpoint: v.GetString("AWS_ENDPOINT"),
		},
		Ingest: IngestConfig{
			WorkDir:        v.GetString("WORK_DIR"),
			AreaRaiDivisor: v.GetFloat64("AREA_RAI_DIVISOR"),
		},
		Projection: ProjectionConfig{
			UTMZone:  v.GetInt("UTM_ZONE"),
			Northern: v.GetBool("UTM_NORTHERN"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	// Validate queue config
	if c.Queue.URL == "" {
		return fmt.Errorf("QUEUE_URL is required")
	}
	if c.Queue.WaitTime < 0 || c.Queue.WaitTime > 20*time.Second {
		return fmt.Errorf("QUEUE_WAIT_SECONDS must be between 0 and 20")
	}
	if c.Queue.VisibilityTimeout < time.Minute {
		return fmt.Errorf("QUEUE_VISIBILITY_SECONDS must be at least 60")
	}
	if c.Queue.IdleSleep <= 0 {
		return fmt.Errorf("QUEUE_IDLE_SLEEP_MS must be positive")
	}

	// Validate AWS config
	if c.AWS.Region == "" {
		return fmt.Errorf("AWS_REGION is required")
	}

	// Validate ingest config
	if c.Ingest.AreaRaiDivisor <= 0 {
		return fmt.Errorf("AREA_RAI_DIVISOR must be positive")
	}

	// Validate projection config
	if c.Projection.UTMZone < 1 || c.Projection.UTMZone > 60 {
		return fmt.Errorf("UTM_ZONE must be between 1 and 60")
	}

	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
