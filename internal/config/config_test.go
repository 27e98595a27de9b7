package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Arrange - only the values without defaults
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("QUEUE_URL", "https://sqs.ap-southeast-1.amazonaws.com/123456789012/uploads")

	// Act
	cfg, err := Load()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "cadastre", cfg.Database.Name)
	assert.Equal(t, 2, cfg.Database.PoolMin)
	assert.Equal(t, 10, cfg.Database.PoolMax)
	assert.Equal(t, "ap-southeast-1", cfg.AWS.Region)
	assert.Equal(t, 20*time.Second, cfg.Queue.WaitTime)
	assert.Equal(t, 900*time.Second, cfg.Queue.VisibilityTimeout)
	assert.Equal(t, 2*time.Second, cfg.Queue.IdleSleep)
	assert.Equal(t, 1600.0, cfg.Ingest.AreaRaiDivisor)
	assert.Equal(t, 48, cfg.Projection.UTMZone)
	assert.True(t, cfg.Projection.Northern)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	// Arrange
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("QUEUE_URL", "https://sqs.local/queue")
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("AWS_ENDPOINT", "http://localhost:4566")
	t.Setenv("QUEUE_WAIT_SECONDS", "5")
	t.Setenv("QUEUE_VISIBILITY_SECONDS", "120")
	t.Setenv("UTM_ZONE", "47")
	t.Setenv("AREA_RAI_DIVISOR", "1600")

	// Act
	cfg, err := Load()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Env)
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
	assert.Equal(t, "http://localhost:4566", cfg.AWS.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Queue.WaitTime)
	assert.Equal(t, 2*time.Minute, cfg.Queue.VisibilityTimeout)
	assert.Equal(t, 47, cfg.Projection.UTMZone)
}

func TestLoad_MissingPassword(t *testing.T) {
	t.Setenv("QUEUE_URL", "https://sqs.local/queue")
	t.Setenv("DB_PASSWORD", "")

	cfg, err := Load()

	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "DB_PASSWORD")
}

func TestLoad_MissingQueueURL(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("QUEUE_URL", "")

	cfg, err := Load()

	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "QUEUE_URL")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "8080", Env: "test"},
			Database: DatabaseConfig{
				Host: "localhost", Port: "5432", Name: "cadastre",
				User: "postgres", Password: "secret", PoolMin: 1, PoolMax: 5,
			},
			Queue: QueueConfig{
				URL:               "https://sqs.local/queue",
				WaitTime:          10 * time.Second,
				VisibilityTimeout: 5 * time.Minute,
				IdleSleep:         time.Second,
			},
			AWS:        AWSConfig{Region: "ap-southeast-1"},
			Ingest:     IngestConfig{AreaRaiDivisor: 1600},
			Projection: ProjectionConfig{UTMZone: 48, Northern: true},
			CORS:       CORSConfig{Origins: []string{"http://localhost:3000"}},
		}
	}

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "pool min above max",
			mutate:  func(c *Config) { c.Database.PoolMin = 10; c.Database.PoolMax = 5 },
			wantErr: "DB_POOL_MIN",
		},
		{
			name:    "wait time above SQS limit",
			mutate:  func(c *Config) { c.Queue.WaitTime = 30 * time.Second },
			wantErr: "QUEUE_WAIT_SECONDS",
		},
		{
			name:    "visibility timeout too short",
			mutate:  func(c *Config) { c.Queue.VisibilityTimeout = 10 * time.Second },
			wantErr: "QUEUE_VISIBILITY_SECONDS",
		},
		{
			name:    "zero rai divisor",
			mutate:  func(c *Config) { c.Ingest.AreaRaiDivisor = 0 },
			wantErr: "AREA_RAI_DIVISOR",
		},
		{
			name:    "utm zone out of range",
			mutate:  func(c *Config) { c.Projection.UTMZone = 61 },
			wantErr: "UTM_ZONE",
		},
		{
			name:    "missing region",
			mutate:  func(c *Config) { c.AWS.Region = "" },
			wantErr: "AWS_REGION",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)

			err := cfg.Validate()

			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestParseOrigins(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseOrigins("a, b"))
	assert.Equal(t, []string{"a"}, parseOrigins("a,,"))
	assert.Empty(t, parseOrigins(""))
}
