// FILE: src/internal/sink/s3.go
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"logrelay/src/internal/config"
	"logrelay/src/internal/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
	"github.com/lixenwraith/log"
)

// S3Sink archives accepted records as gzipped NDJSON objects. Records are
// buffered and flushed when the buffer reaches flush_records or on the
// flush interval, whichever comes first.
type S3Sink struct {
	cfg    config.S3SinkConfig
	logger *log.Logger
	client *s3.Client

	buffer []core.LogRecord
	mu     sync.Mutex

	totalRecords  atomic.Uint64
	totalBatches  atomic.Uint64
	failedBatches atomic.Uint64
	startTime     time.Time
	lastWrite     atomic.Value // time.Time

	done chan struct{}
	wg   sync.WaitGroup
}

// NewS3Sink creates an S3 archive sink from configuration
func NewS3Sink(cfg config.S3SinkConfig, logger *log.Logger) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 sink requires a bucket")
	}
	if cfg.FlushRecords <= 0 {
		cfg.FlushRecords = 500
	}
	if cfg.FlushIntervalSeconds <= 0 {
		cfg.FlushIntervalSeconds = 30
	}

	s := &S3Sink{
		cfg:       cfg,
		logger:    logger,
		buffer:    make([]core.LogRecord, 0, cfg.FlushRecords),
		startTime: time.Now(),
		done:      make(chan struct{}),
	}
	s.lastWrite.Store(time.Time{})

	return s, nil
}

func (s *S3Sink) Start(ctx context.Context) error {
	opts := []func(*awsconfig.LoadOptions) error{}
	if s.cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s.cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}
	s.client = s3.NewFromConfig(awsCfg)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.flushLoop()
	}()

	s.logger.Info("msg", "S3 sink started",
		"component", "s3_sink",
		"bucket", s.cfg.Bucket,
		"prefix", s.cfg.Prefix,
		"flush_records", s.cfg.FlushRecords)
	return nil
}

func (s *S3Sink) Write(ctx context.Context, records []core.LogRecord) error {
	s.mu.Lock()
	s.buffer = append(s.buffer, records...)
	shouldFlush := len(s.buffer) >= s.cfg.FlushRecords
	s.mu.Unlock()

	if shouldFlush {
		return s.flush(ctx)
	}
	return nil
}

func (s *S3Sink) flushLoop() {
	ticker := time.NewTicker(time.Duration(s.cfg.FlushIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := s.flush(ctx); err != nil {
				s.logger.Warn("msg", "S3 periodic flush failed",
					"component", "s3_sink",
					"error", err)
			}
			cancel()

		case <-s.done:
			return
		}
	}
}

func (s *S3Sink) flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.buffer
	s.buffer = make([]core.LogRecord, 0, s.cfg.FlushRecords)
	s.mu.Unlock()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)
	for i := range batch {
		if err := enc.Encode(&batch[i]); err != nil {
			continue
		}
	}
	if err := gz.Close(); err != nil {
		s.failedBatches.Add(1)
		return fmt.Errorf("failed to compress batch: %w", err)
	}

	key := s.objectKey(time.Now().UTC())
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(s.cfg.Bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		s.failedBatches.Add(1)
		// Records in this batch are dropped from the archive; the primary
		// sink still has them
		return fmt.Errorf("s3 put failed: %w", err)
	}

	s.totalRecords.Add(uint64(len(batch)))
	s.totalBatches.Add(1)
	s.lastWrite.Store(time.Now())

	s.logger.Debug("msg", "Archived batch to S3",
		"component", "s3_sink",
		"key", key,
		"records", len(batch))

	return nil
}

func (s *S3Sink) objectKey(t time.Time) string {
	prefix := s.cfg.Prefix
	if prefix == "" {
		prefix = "logrelay"
	}
	return fmt.Sprintf("%s/%s/%s.ndjson.gz",
		prefix, t.Format("2006/01/02"), t.Format("150405.000000000"))
}

func (s *S3Sink) Stop() {
	close(s.done)
	s.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.flush(ctx); err != nil {
		s.logger.Warn("msg", "Final S3 flush failed",
			"component", "s3_sink",
			"error", err)
	}

	s.logger.Info("msg", "S3 sink stopped", "component", "s3_sink")
}

func (s *S3Sink) GetStats() Stats {
	lastWrite, _ := s.lastWrite.Load().(time.Time)

	s.mu.Lock()
	buffered := len(s.buffer)
	s.mu.Unlock()

	return Stats{
		Type:          "s3",
		TotalRecords:  s.totalRecords.Load(),
		TotalBatches:  s.totalBatches.Load(),
		FailedBatches: s.failedBatches.Load(),
		StartTime:     s.startTime,
		LastWrite:     lastWrite,
		Details: map[string]any{
			"bucket":   s.cfg.Bucket,
			"prefix":   s.cfg.Prefix,
			"buffered": buffered,
		},
	}
}
