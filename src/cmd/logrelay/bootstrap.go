// FILE: src/cmd/logrelay/bootstrap.go
package main

import (
	"context"
	"fmt"
	"strings"

	"logrelay/src/internal/auth"
	"logrelay/src/internal/config"
	"logrelay/src/internal/ingest"
	"logrelay/src/internal/limit"
	"logrelay/src/internal/redact"
	"logrelay/src/internal/server"
	"logrelay/src/internal/sink"
	"logrelay/src/internal/stream"

	"github.com/lixenwraith/log"
)

// runtime holds every started component for ordered shutdown
type runtime struct {
	httpServer   *server.HTTPServer
	streamServer *stream.Server
	distributor  *stream.Distributor
	registry     *stream.Registry
	coordinator  *ingest.Coordinator
	admission    *limit.ProducerLimiter
	sinks        []sink.Sink
}

// bootstrap builds the pipeline: sinks and registry first, then the
// distributor, coordinator, and the two servers on top
func bootstrap(cfg *config.Config) (*runtime, error) {
	ctx := context.Background()

	authenticator, err := auth.New(&cfg.Auth, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	sinks, err := buildSinks(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry := stream.NewRegistry(logger)
	distributor := stream.NewDistributor(registry, cfg.Stream.DistributionBuffer, logger)
	distributor.Start()

	admission := limit.NewProducerLimiter(cfg.Admission, logger)

	coordinator := ingest.NewCoordinator(cfg.Ingest, admission,
		redact.NewRegexRedactor(logger), sinks, distributor, logger)
	coordinator.SetDedupCapacity(cfg.Dedup.Capacity)

	streamServer := stream.NewServer(cfg.Stream, registry, authenticator, logger)
	if err := streamServer.Start(); err != nil {
		return nil, fmt.Errorf("failed to start streaming server: %w", err)
	}

	httpServer := server.NewHTTPServer(cfg.HTTP, coordinator, registry,
		distributor, authenticator, logger)
	if err := httpServer.Start(); err != nil {
		streamServer.Stop()
		return nil, fmt.Errorf("failed to start ingestion API: %w", err)
	}

	logger.Info("msg", "logrelay started",
		"http_port", cfg.HTTP.Port,
		"stream_port", cfg.Stream.Port,
		"sinks", len(sinks))

	return &runtime{
		httpServer:   httpServer,
		streamServer: streamServer,
		distributor:  distributor,
		registry:     registry,
		coordinator:  coordinator,
		admission:    admission,
		sinks:        sinks,
	}, nil
}

func buildSinks(ctx context.Context, cfg *config.Config) ([]sink.Sink, error) {
	var sinks []sink.Sink

	if cfg.Sinks.File.Enabled {
		fileSink, err := sink.NewFileSink(cfg.Sinks.File, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create file sink: %w", err)
		}
		if err := fileSink.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start file sink: %w", err)
		}
		sinks = append(sinks, fileSink)
	}

	if cfg.Sinks.S3.Enabled {
		s3Sink, err := sink.NewS3Sink(cfg.Sinks.S3, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 sink: %w", err)
		}
		if err := s3Sink.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start s3 sink: %w", err)
		}
		sinks = append(sinks, s3Sink)
	}

	if cfg.Sinks.Memory.Enabled {
		memSink := sink.NewMemorySink(cfg.Sinks.Memory.Capacity)
		sinks = append(sinks, memSink)
	}

	return sinks, nil
}

// shutdown stops intake first, then fan-out, then the sinks
func (rt *runtime) shutdown() {
	rt.httpServer.Stop()
	rt.streamServer.Stop()
	rt.coordinator.Shutdown()
	rt.distributor.Stop()
	rt.admission.Shutdown()

	for _, s := range rt.sinks {
		s.Stop()
	}
}

// initializeLogger sets up the process logger from configuration
func initializeLogger(cfg *config.Config) error {
	logger = log.NewLogger()

	levelValue, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}

	configArgs := []string{fmt.Sprintf("level=%d", levelValue)}

	switch cfg.Logging.Output {
	case "none":
		configArgs = append(configArgs, "disable_file=true", "enable_stdout=false")

	case "stdout":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target=stdout")

	case "stderr":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target=stderr")

	case "file":
		configArgs = append(configArgs, "enable_stdout=false")
		appendFileArgs(&configArgs, cfg)

	case "both":
		configArgs = append(configArgs, "enable_stdout=true", "stdout_target=stderr")
		appendFileArgs(&configArgs, cfg)

	default:
		return fmt.Errorf("invalid log output mode: %s", cfg.Logging.Output)
	}

	if err := logger.ApplyConfigString(configArgs...); err != nil {
		return err
	}
	return logger.Start()
}

func appendFileArgs(configArgs *[]string, cfg *config.Config) {
	*configArgs = append(*configArgs,
		fmt.Sprintf("directory=%s", cfg.Logging.Directory),
		fmt.Sprintf("name=%s", cfg.Logging.Name),
		fmt.Sprintf("max_size_mb=%d", cfg.Logging.MaxSizeMB))

	if cfg.Logging.RetentionHours > 0 {
		*configArgs = append(*configArgs,
			fmt.Sprintf("retention_period_hrs=%.1f", cfg.Logging.RetentionHours))
	}
}

func parseLogLevel(level string) (int, error) {
	switch strings.ToLower(level) {
	case "debug":
		return int(log.LevelDebug), nil
	case "info":
		return int(log.LevelInfo), nil
	case "warn", "warning":
		return int(log.LevelWarn), nil
	case "error":
		return int(log.LevelError), nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", level)
	}
}
