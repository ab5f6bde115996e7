// FILE: src/internal/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lconfig "github.com/lixenwraith/config"
)

func defaults() *Config {
	return &Config{
		Logging: LoggingConfig{
			Output:         "stderr",
			Level:          "info",
			Directory:      "/var/log/logrelay",
			Name:           "logrelay",
			MaxSizeMB:      100,
			RetentionHours: 72,
		},
		Ingest: IngestConfig{
			MaxRecordsPerBatch:   1000,
			MaxPayloadBytes:      5 * 1024 * 1024,
			MaxMessageBytes:      16 * 1024,
			MaxContextKeys:       32,
			MaxContextValueBytes: 4 * 1024,
			MaxReportedErrors:    100,
			BatchRetentionSec:    300,
			Redact:               false,
			Environment:          "production",
		},
		Dedup: DedupConfig{
			Capacity: 10000,
		},
		Admission: AdmissionConfig{
			Requests: AdmissionDimension{Limit: 100, WindowSeconds: 60},
			Records:  AdmissionDimension{Limit: 10000, WindowSeconds: 60},
			Bytes:    AdmissionDimension{Limit: 50 * 1024 * 1024, WindowSeconds: 60},
		},
		HTTP: HTTPConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			ReadTimeoutSeconds: 30,
			MaxBodyBytes:       8 * 1024 * 1024,
		},
		Stream: StreamConfig{
			Host:                     "0.0.0.0",
			Port:                     9090,
			MaxQueueSize:             1000,
			MaxSubscriptionsPerConn:  10,
			HeartbeatIntervalSeconds: 30,
			StaleAfterIntervals:      3,
			InboundMessagesPerSecond: 10,
			InboundBurst:             20,
			DistributionBuffer:       10000,
		},
		Auth: AuthConfig{
			Enabled: false,
		},
		Sinks: SinksConfig{
			File: FileSinkConfig{
				Enabled:   true,
				Directory: "/var/lib/logrelay",
				Name:      "records",
				MaxSizeMB: 500,
			},
			S3: S3SinkConfig{
				Enabled:              false,
				Prefix:               "logrelay",
				FlushRecords:         500,
				FlushIntervalSeconds: 30,
			},
			Memory: MemorySinkConfig{
				Enabled:  false,
				Capacity: 1000,
			},
		},
	}
}

// LoadWithCLI builds the configuration from defaults, config file,
// LOGRELAY_* environment variables, and CLI arguments, in ascending
// precedence
func LoadWithCLI(cliArgs []string) (*Config, error) {
	configPath := GetConfigPath()

	cfg, err := lconfig.NewBuilder().
		WithDefaults(defaults()).
		WithEnvPrefix("LOGRELAY_").
		WithFile(configPath).
		WithArgs(cliArgs).
		WithEnvTransform(customEnvTransform).
		WithSources(
			lconfig.SourceCLI,
			lconfig.SourceEnv,
			lconfig.SourceFile,
			lconfig.SourceDefault,
		).
		Build()

	if err != nil {
		if !strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	finalConfig := &Config{}
	if err := cfg.Scan(finalConfig); err != nil {
		return nil, fmt.Errorf("failed to scan config: %w", err)
	}

	return finalConfig, finalConfig.validate()
}

func customEnvTransform(path string) string {
	env := strings.ReplaceAll(path, ".", "_")
	env = strings.ToUpper(env)
	return "LOGRELAY_" + env
}

// GetConfigPath resolves the config file location from environment
// variables, falling back to the user config directory
func GetConfigPath() string {
	if configFile := os.Getenv("LOGRELAY_CONFIG_FILE"); configFile != "" {
		if filepath.IsAbs(configFile) {
			return configFile
		}
		if configDir := os.Getenv("LOGRELAY_CONFIG_DIR"); configDir != "" {
			return filepath.Join(configDir, configFile)
		}
		return configFile
	}

	if configDir := os.Getenv("LOGRELAY_CONFIG_DIR"); configDir != "" {
		return filepath.Join(configDir, "logrelay.toml")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "logrelay.toml")
	}

	return "logrelay.toml"
}
