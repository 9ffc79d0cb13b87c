package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                  "development",
		JWTSecret:            "secure-secret-at-least-32-chars-long",
		DBDriver:             "postgres",
		DBPassword:           "secure-password",
		DBSSLMode:            "require",
		Port:                 "8080",
		MediaLargeUploadMB:   40,
		MediaMaxUploadMB:     200,
		FeedFreshWindowHours: 24,
		NotifyTransport:      "redis",
		S3AccessKey:          "access",
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateMediaAndTransport(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }},
		{"unknown transport", func(c *Config) { c.NotifyTransport = "smtp" }},
		{"kafka without brokers", func(c *Config) { c.NotifyTransport = "kafka"; c.KafkaBrokers = " , " }},
		{"zero large upload threshold", func(c *Config) { c.MediaLargeUploadMB = 0 }},
		{"max upload below threshold", func(c *Config) { c.MediaMaxUploadMB = 10 }},
		{"zero feed window", func(c *Config) { c.FeedFreshWindowHours = 0 }},
		{"sqlite in production", func(c *Config) { c.Env = "production"; c.DBDriver = "sqlite" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestConfig_DerivedValues(t *testing.T) {
	c := validConfig()
	c.KafkaBrokers = "kafka-1:9092, kafka-2:9092,,"

	assert.Equal(t, int64(40*1024*1024), c.LargeUploadThreshold())
	assert.Equal(t, 24*time.Hour, c.FeedFreshWindow())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, c.KafkaBrokerList())
}

func TestLoadConfig_Normalization(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("NOTIFY_TRANSPORT", "Kafka")
	defer viper.Reset()

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "kafka", c.NotifyTransport)
	assert.Equal(t, 40, c.MediaLargeUploadMB)
	assert.Equal(t, "postgres", c.DBDriver)
}
