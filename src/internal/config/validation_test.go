// FILE: src/internal/config/validation_test.go
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	t.Run("DefaultsAreValid", func(t *testing.T) {
		assert.NoError(t, defaults().validate())
	})

	testCases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"BadLoggingOutput", func(c *Config) { c.Logging.Output = "syslog" }},
		{"ZeroMaxRecords", func(c *Config) { c.Ingest.MaxRecordsPerBatch = 0 }},
		{"ZeroMaxPayload", func(c *Config) { c.Ingest.MaxPayloadBytes = 0 }},
		{"ZeroDedupCapacity", func(c *Config) { c.Dedup.Capacity = 0 }},
		{"ZeroAdmissionLimit", func(c *Config) { c.Admission.Records.Limit = 0 }},
		{"ZeroAdmissionWindow", func(c *Config) { c.Admission.Bytes.WindowSeconds = 0 }},
		{"HTTPPortOutOfRange", func(c *Config) { c.HTTP.Port = 70000 }},
		{"StreamPortZero", func(c *Config) { c.Stream.Port = 0 }},
		{"PortClash", func(c *Config) { c.Stream.Port = c.HTTP.Port }},
		{"TinyQueue", func(c *Config) { c.Stream.MaxQueueSize = 1 }},
		{"ZeroSubscriptions", func(c *Config) { c.Stream.MaxSubscriptionsPerConn = 0 }},
		{"ZeroHeartbeat", func(c *Config) { c.Stream.HeartbeatIntervalSeconds = 0 }},
		{"StaleTooSoon", func(c *Config) { c.Stream.StaleAfterIntervals = 1 }},
		{"AuthEnabledWithoutCredentials", func(c *Config) { c.Auth.Enabled = true }},
		{"TokenWithoutIdentity", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.Tokens = []TokenEntry{{Hash: "$argon2id$..."}}
		}},
		{"TokenWithoutHash", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.Tokens = []TokenEntry{{Identity: "agent"}}
		}},
		{"S3WithoutBucket", func(c *Config) { c.Sinks.S3.Enabled = true }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults()
			tc.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}

	t.Run("AuthWithJWTKeyOnly", func(t *testing.T) {
		cfg := defaults()
		cfg.Auth.Enabled = true
		cfg.Auth.JWTSigningKey = "secret"
		assert.NoError(t, cfg.validate())
	})
}

func TestCustomEnvTransform(t *testing.T) {
	assert.Equal(t, "LOGRELAY_HTTP_PORT", customEnvTransform("http.port"))
	assert.Equal(t, "LOGRELAY_SINKS_S3_BUCKET", customEnvTransform("sinks.s3.bucket"))
}
