// FILE: src/internal/config/config.go
package config

// Config is the full logrelay configuration tree
type Config struct {
	Logging   LoggingConfig   `toml:"logging"`
	Ingest    IngestConfig    `toml:"ingest"`
	Dedup     DedupConfig     `toml:"dedup"`
	Admission AdmissionConfig `toml:"admission"`
	HTTP      HTTPConfig      `toml:"http"`
	Stream    StreamConfig    `toml:"stream"`
	Auth      AuthConfig      `toml:"auth"`
	Sinks     SinksConfig     `toml:"sinks"`
}

type LoggingConfig struct {
	Output string `toml:"output"` // "stdout", "stderr", "file", "both", "none"
	Level  string `toml:"level"`  // "debug", "info", "warn", "error"

	Directory      string  `toml:"directory"`
	Name           string  `toml:"name"`
	MaxSizeMB      int64   `toml:"max_size_mb"`
	RetentionHours float64 `toml:"retention_hours"`
}

type IngestConfig struct {
	MaxRecordsPerBatch   int   `toml:"max_records_per_batch"`
	MaxPayloadBytes      int64 `toml:"max_payload_bytes"`
	MaxMessageBytes      int   `toml:"max_message_bytes"`
	MaxContextKeys       int   `toml:"max_context_keys"`
	MaxContextValueBytes int   `toml:"max_context_value_bytes"`
	MaxReportedErrors    int   `toml:"max_reported_errors"`
	BatchRetentionSec    int   `toml:"batch_retention_seconds"`
	Redact               bool  `toml:"redact"`

	// Enrichment stamped onto accepted records
	Environment string `toml:"environment"`
	Region      string `toml:"region"`
}

type DedupConfig struct {
	Capacity int `toml:"capacity"`
}

// AdmissionConfig bounds each producer identity across three dimensions,
// each with its own refill window
type AdmissionConfig struct {
	Requests AdmissionDimension `toml:"requests"`
	Records  AdmissionDimension `toml:"records"`
	Bytes    AdmissionDimension `toml:"bytes"`
}

type AdmissionDimension struct {
	Limit         float64 `toml:"limit"`
	WindowSeconds float64 `toml:"window_seconds"`
}

type HTTPConfig struct {
	Host               string `toml:"host"`
	Port               int    `toml:"port"`
	ReadTimeoutSeconds int    `toml:"read_timeout_seconds"`
	MaxBodyBytes       int    `toml:"max_body_bytes"`
}

type StreamConfig struct {
	Host                     string  `toml:"host"`
	Port                     int     `toml:"port"`
	MaxQueueSize             int     `toml:"max_queue_size"`
	MaxSubscriptionsPerConn  int     `toml:"max_subscriptions_per_connection"`
	HeartbeatIntervalSeconds int     `toml:"heartbeat_interval_seconds"`
	StaleAfterIntervals      int     `toml:"stale_after_intervals"`
	InboundMessagesPerSecond float64 `toml:"inbound_messages_per_second"`
	InboundBurst             int     `toml:"inbound_burst"`
	DistributionBuffer       int     `toml:"distribution_buffer"`
}

type AuthConfig struct {
	Enabled       bool         `toml:"enabled"`
	JWTSigningKey string       `toml:"jwt_signing_key"`
	Tokens        []TokenEntry `toml:"tokens"`
}

// TokenEntry is a static access token: an argon2id encoded hash plus the
// identity and permissions granted to its holder
type TokenEntry struct {
	Hash        string   `toml:"hash"`
	Identity    string   `toml:"identity"`
	Permissions []string `toml:"permissions"` // "ingest", "subscribe", "admin"
}

type SinksConfig struct {
	File   FileSinkConfig   `toml:"file"`
	S3     S3SinkConfig     `toml:"s3"`
	Memory MemorySinkConfig `toml:"memory"`
}

type FileSinkConfig struct {
	Enabled   bool   `toml:"enabled"`
	Directory string `toml:"directory"`
	Name      string `toml:"name"`
	MaxSizeMB int64  `toml:"max_size_mb"`
}

type S3SinkConfig struct {
	Enabled              bool   `toml:"enabled"`
	Bucket               string `toml:"bucket"`
	Prefix               string `toml:"prefix"`
	Region               string `toml:"region"`
	FlushRecords         int    `toml:"flush_records"`
	FlushIntervalSeconds int    `toml:"flush_interval_seconds"`
}

type MemorySinkConfig struct {
	Enabled  bool `toml:"enabled"`
	Capacity int  `toml:"capacity"`
}
