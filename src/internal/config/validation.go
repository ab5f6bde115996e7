// FILE: src/internal/config/validation.go
package config

import (
	"fmt"
)

func (c *Config) validate() error {
	switch c.Logging.Output {
	case "stdout", "stderr", "file", "both", "none":
	default:
		return fmt.Errorf("invalid logging.output: %q", c.Logging.Output)
	}

	if c.Ingest.MaxRecordsPerBatch < 1 {
		return fmt.Errorf("ingest.max_records_per_batch must be positive, got %d", c.Ingest.MaxRecordsPerBatch)
	}
	if c.Ingest.MaxPayloadBytes < 1 {
		return fmt.Errorf("ingest.max_payload_bytes must be positive, got %d", c.Ingest.MaxPayloadBytes)
	}
	if c.Ingest.MaxContextKeys < 1 {
		return fmt.Errorf("ingest.max_context_keys must be positive, got %d", c.Ingest.MaxContextKeys)
	}
	if c.Ingest.BatchRetentionSec < 1 {
		return fmt.Errorf("ingest.batch_retention_seconds must be positive, got %d", c.Ingest.BatchRetentionSec)
	}

	if c.Dedup.Capacity < 1 {
		return fmt.Errorf("dedup.capacity must be positive, got %d", c.Dedup.Capacity)
	}

	for name, dim := range map[string]AdmissionDimension{
		"requests": c.Admission.Requests,
		"records":  c.Admission.Records,
		"bytes":    c.Admission.Bytes,
	} {
		if dim.Limit <= 0 {
			return fmt.Errorf("admission.%s.limit must be positive, got %v", name, dim.Limit)
		}
		if dim.WindowSeconds <= 0 {
			return fmt.Errorf("admission.%s.window_seconds must be positive, got %v", name, dim.WindowSeconds)
		}
	}

	if err := validatePort("http.port", c.HTTP.Port); err != nil {
		return err
	}
	if err := validatePort("stream.port", c.Stream.Port); err != nil {
		return err
	}
	if c.HTTP.Port == c.Stream.Port {
		return fmt.Errorf("http.port and stream.port must differ, both are %d", c.HTTP.Port)
	}

	if c.Stream.MaxQueueSize < 2 {
		return fmt.Errorf("stream.max_queue_size must be at least 2, got %d", c.Stream.MaxQueueSize)
	}
	if c.Stream.MaxSubscriptionsPerConn < 1 {
		return fmt.Errorf("stream.max_subscriptions_per_connection must be positive, got %d", c.Stream.MaxSubscriptionsPerConn)
	}
	if c.Stream.HeartbeatIntervalSeconds < 1 {
		return fmt.Errorf("stream.heartbeat_interval_seconds must be positive, got %d", c.Stream.HeartbeatIntervalSeconds)
	}
	if c.Stream.StaleAfterIntervals < 2 {
		return fmt.Errorf("stream.stale_after_intervals must be at least 2, got %d", c.Stream.StaleAfterIntervals)
	}

	if c.Auth.Enabled {
		if len(c.Auth.Tokens) == 0 && c.Auth.JWTSigningKey == "" {
			return fmt.Errorf("auth enabled but no tokens or jwt_signing_key configured")
		}
		for i, tok := range c.Auth.Tokens {
			if tok.Identity == "" {
				return fmt.Errorf("auth.tokens[%d]: identity is required", i)
			}
			if tok.Hash == "" {
				return fmt.Errorf("auth.tokens[%d]: hash is required", i)
			}
		}
	}

	if c.Sinks.S3.Enabled && c.Sinks.S3.Bucket == "" {
		return fmt.Errorf("sinks.s3 enabled but bucket is empty")
	}

	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be 1-65535, got %d", name, port)
	}
	return nil
}
