// FILE: src/internal/sink/file.go
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"logrelay/src/internal/config"
	"logrelay/src/internal/core"

	"github.com/lixenwraith/log"
)

// FileSink appends accepted records as NDJSON with size-based rotation
type FileSink struct {
	cfg    config.FileSinkConfig
	logger *log.Logger

	file    *os.File
	written int64
	mu      sync.Mutex

	totalRecords  atomic.Uint64
	totalBatches  atomic.Uint64
	failedBatches atomic.Uint64
	startTime     time.Time
	lastWrite     atomic.Value // time.Time
}

// NewFileSink creates a file sink from configuration
func NewFileSink(cfg config.FileSinkConfig, logger *log.Logger) (*FileSink, error) {
	if cfg.Directory == "" {
		return nil, fmt.Errorf("file sink requires a directory")
	}
	if cfg.Name == "" {
		cfg.Name = "records"
	}

	f := &FileSink{
		cfg:       cfg,
		logger:    logger,
		startTime: time.Now(),
	}
	f.lastWrite.Store(time.Time{})

	return f, nil
}

func (f *FileSink) Start(ctx context.Context) error {
	if err := os.MkdirAll(f.cfg.Directory, 0o755); err != nil {
		return fmt.Errorf("failed to create sink directory: %w", err)
	}
	if err := f.open(); err != nil {
		return err
	}

	f.logger.Info("msg", "File sink started",
		"component", "file_sink",
		"directory", f.cfg.Directory,
		"name", f.cfg.Name)
	return nil
}

func (f *FileSink) open() error {
	path := filepath.Join(f.cfg.Directory, f.cfg.Name+".ndjson")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open sink file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat sink file: %w", err)
	}

	f.file = file
	f.written = info.Size()
	return nil
}

func (f *FileSink) Write(ctx context.Context, records []core.LogRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		f.failedBatches.Add(1)
		return fmt.Errorf("file sink not started")
	}

	for i := range records {
		data, err := json.Marshal(&records[i])
		if err != nil {
			continue
		}
		data = append(data, '\n')

		n, err := f.file.Write(data)
		if err != nil {
			f.failedBatches.Add(1)
			return fmt.Errorf("sink write failed: %w", err)
		}
		f.written += int64(n)
	}

	f.totalRecords.Add(uint64(len(records)))
	f.totalBatches.Add(1)
	f.lastWrite.Store(time.Now())

	if f.cfg.MaxSizeMB > 0 && f.written >= f.cfg.MaxSizeMB*1024*1024 {
		if err := f.rotate(); err != nil {
			f.logger.Warn("msg", "Sink rotation failed",
				"component", "file_sink",
				"error", err)
		}
	}

	return nil
}

// MUST be called with mutex held
func (f *FileSink) rotate() error {
	f.file.Close()

	current := filepath.Join(f.cfg.Directory, f.cfg.Name+".ndjson")
	rotated := filepath.Join(f.cfg.Directory,
		fmt.Sprintf("%s-%s.ndjson", f.cfg.Name, time.Now().UTC().Format("20060102T150405")))

	if err := os.Rename(current, rotated); err != nil {
		return fmt.Errorf("failed to rotate sink file: %w", err)
	}

	f.logger.Info("msg", "Sink file rotated",
		"component", "file_sink",
		"rotated_to", rotated)

	return f.open()
}

func (f *FileSink) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file != nil {
		f.file.Sync()
		f.file.Close()
		f.file = nil
	}

	f.logger.Info("msg", "File sink stopped", "component", "file_sink")
}

func (f *FileSink) GetStats() Stats {
	lastWrite, _ := f.lastWrite.Load().(time.Time)

	f.mu.Lock()
	written := f.written
	f.mu.Unlock()

	return Stats{
		Type:          "file",
		TotalRecords:  f.totalRecords.Load(),
		TotalBatches:  f.totalBatches.Load(),
		FailedBatches: f.failedBatches.Load(),
		StartTime:     f.startTime,
		LastWrite:     lastWrite,
		Details: map[string]any{
			"directory":     f.cfg.Directory,
			"bytes_written": written,
		},
	}
}
