// FILE: src/internal/ingest/coordinator_test.go
package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"logrelay/src/internal/config"
	"logrelay/src/internal/core"
	"logrelay/src/internal/limit"
	"logrelay/src/internal/redact"
	"logrelay/src/internal/sink"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

// captureDist records everything published to the live stream
type captureDist struct {
	mu      sync.Mutex
	records []core.LogRecord
}

func (d *captureDist) Publish(rec core.LogRecord) {
	d.mu.Lock()
	d.records = append(d.records, rec)
	d.mu.Unlock()
}

func (d *captureDist) published() []core.LogRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]core.LogRecord, len(d.records))
	copy(out, d.records)
	return out
}

func testBatch(n int) Batch {
	base := time.Now()
	records := make([]core.LogRecord, n)
	for i := range records {
		records[i] = core.LogRecord{
			ID:          fmt.Sprintf("rec-%d", i),
			Timestamp:   base.Add(time.Duration(i) * time.Millisecond),
			Level:       core.LevelInfo,
			ServiceName: "checkout",
			Message:     fmt.Sprintf("event %d", i),
		}
	}
	return Batch{
		Source:      "test-agent",
		Producer:    "producer-1",
		Records:     records,
		PayloadSize: 512,
	}
}

func TestCoordinator_Ingest(t *testing.T) {
	logger := newTestLogger()

	t.Run("MixedBatchAccounting", func(t *testing.T) {
		mem := sink.NewMemorySink(100)
		dist := &captureDist{}
		c := NewCoordinator(testIngestConfig(), nil, nil, []sink.Sink{mem}, dist, logger)
		defer c.Shutdown()

		batch := testBatch(10)
		batch.Records[2].Message = "" // validation failure
		batch.Records[5].Level = "verbose"
		batch.Records[8] = batch.Records[0] // duplicate fingerprint
		batch.Records[8].ID = "rec-8-copy"

		result, batchErr := c.Ingest(context.Background(), batch, core.IngestOptions{})
		assert.Nil(t, batchErr)

		assert.Equal(t, 10, result.Submitted)
		assert.Equal(t, 7, result.Accepted)
		assert.Equal(t, 2, result.Rejected)
		assert.Equal(t, 1, result.Duplicates)
		assert.Equal(t, result.Submitted, result.Accepted+result.Rejected+result.Duplicates)
		assert.True(t, result.Success)
		assert.NotEmpty(t, result.CorrelationID)
		assert.Len(t, result.Errors, 2)

		// Rejected and duplicate records never reach the sinks
		committed := mem.Records()
		assert.Len(t, committed, 7)
		for _, rec := range committed {
			assert.NotEmpty(t, rec.Message)
			assert.NotEqual(t, "rec-8-copy", rec.ID)
		}

		assert.Len(t, dist.published(), 7)
	})

	t.Run("MajorityRejectedFailsBatch", func(t *testing.T) {
		c := NewCoordinator(testIngestConfig(), nil, nil, nil, nil, logger)
		defer c.Shutdown()

		batch := testBatch(4)
		batch.Records[0].Message = ""
		batch.Records[1].Message = ""

		result, batchErr := c.Ingest(context.Background(), batch, core.IngestOptions{})
		assert.Nil(t, batchErr)
		assert.Equal(t, 2, result.Rejected)
		assert.False(t, result.Success)
	})

	t.Run("EmptyBatchSucceeds", func(t *testing.T) {
		c := NewCoordinator(testIngestConfig(), nil, nil, nil, nil, logger)
		defer c.Shutdown()

		result, batchErr := c.Ingest(context.Background(), testBatch(0), core.IngestOptions{})
		assert.Nil(t, batchErr)
		assert.Equal(t, 0, result.Submitted)
		assert.True(t, result.Success)
	})

	t.Run("TooManyRecords", func(t *testing.T) {
		cfg := testIngestConfig()
		cfg.MaxRecordsPerBatch = 5
		c := NewCoordinator(cfg, nil, nil, nil, nil, logger)
		defer c.Shutdown()

		result, batchErr := c.Ingest(context.Background(), testBatch(6), core.IngestOptions{})
		assert.Nil(t, result)
		assert.NotNil(t, batchErr)
		assert.Equal(t, core.CodeTooManyRecords, batchErr.Code)
		assert.NotEmpty(t, batchErr.CorrelationID)
	})

	t.Run("PayloadTooLarge", func(t *testing.T) {
		cfg := testIngestConfig()
		cfg.MaxPayloadBytes = 100
		c := NewCoordinator(cfg, nil, nil, nil, nil, logger)
		defer c.Shutdown()

		_, batchErr := c.Ingest(context.Background(), testBatch(2), core.IngestOptions{})
		assert.NotNil(t, batchErr)
		assert.Equal(t, core.CodePayloadTooLarge, batchErr.Code)
	})

	t.Run("AdmissionRejection", func(t *testing.T) {
		admission := limit.NewProducerLimiter(config.AdmissionConfig{
			Requests: config.AdmissionDimension{Limit: 1, WindowSeconds: 60},
			Records:  config.AdmissionDimension{Limit: 100, WindowSeconds: 60},
			Bytes:    config.AdmissionDimension{Limit: 1 << 20, WindowSeconds: 60},
		}, logger)
		defer admission.Shutdown()

		c := NewCoordinator(testIngestConfig(), admission, nil, nil, nil, logger)
		defer c.Shutdown()

		_, batchErr := c.Ingest(context.Background(), testBatch(1), core.IngestOptions{})
		assert.Nil(t, batchErr)

		_, batchErr = c.Ingest(context.Background(), testBatch(1), core.IngestOptions{})
		assert.NotNil(t, batchErr)
		assert.Equal(t, core.CodeRateLimitExceeded, batchErr.Code)
		assert.Greater(t, batchErr.RetryAfterMs, int64(0))
	})
}

func TestCoordinator_Enrichment(t *testing.T) {
	logger := newTestLogger()

	t.Run("StampsSourceEnvironmentAndDefaults", func(t *testing.T) {
		cfg := testIngestConfig()
		cfg.Environment = "staging"
		cfg.Region = "eu-west-1"

		mem := sink.NewMemorySink(10)
		c := NewCoordinator(cfg, nil, nil, []sink.Sink{mem}, nil, logger)
		defer c.Shutdown()

		result, batchErr := c.Ingest(context.Background(), testBatch(1), core.IngestOptions{})
		assert.Nil(t, batchErr)
		assert.Equal(t, 1, result.Accepted)

		committed := mem.Records()
		assert.Len(t, committed, 1)
		rec := committed[0]
		assert.Equal(t, "test-agent", rec.Source)
		assert.Equal(t, "staging", rec.Environment)
		assert.Equal(t, "eu-west-1", rec.Region)
		assert.Equal(t, core.DefaultDomain, rec.Domain)
		assert.NotEmpty(t, rec.CorrelationID)
	})

	t.Run("OptionOverridesEnvironment", func(t *testing.T) {
		cfg := testIngestConfig()
		cfg.Environment = "staging"

		mem := sink.NewMemorySink(10)
		c := NewCoordinator(cfg, nil, nil, []sink.Sink{mem}, nil, logger)
		defer c.Shutdown()

		opts := core.IngestOptions{Environment: "production", Region: "us-east-1"}
		_, batchErr := c.Ingest(context.Background(), testBatch(1), opts)
		assert.Nil(t, batchErr)

		rec := mem.Records()[0]
		assert.Equal(t, "production", rec.Environment)
		assert.Equal(t, "us-east-1", rec.Region)
	})

	t.Run("RedactsMessageAndContext", func(t *testing.T) {
		mem := sink.NewMemorySink(10)
		c := NewCoordinator(testIngestConfig(), nil,
			redact.NewRegexRedactor(logger), []sink.Sink{mem}, nil, logger)
		defer c.Shutdown()

		batch := testBatch(1)
		batch.Records[0].Message = "login failed for alice@example.com"
		batch.Records[0].Context = map[string]string{"auth": "password=hunter2"}

		_, batchErr := c.Ingest(context.Background(), batch, core.IngestOptions{Redact: true})
		assert.Nil(t, batchErr)

		rec := mem.Records()[0]
		assert.Equal(t, "login failed for [email]", rec.Message)
		assert.Equal(t, "password=[redacted]", rec.Context["auth"])
	})
}

func TestCoordinator_IngestAsync(t *testing.T) {
	logger := newTestLogger()

	t.Run("TracksBatchToCompletion", func(t *testing.T) {
		mem := sink.NewMemorySink(100)
		c := NewCoordinator(testIngestConfig(), nil, nil, []sink.Sink{mem}, nil, logger)
		defer c.Shutdown()

		batchID, batchErr := c.IngestAsync(context.Background(), testBatch(3), core.IngestOptions{})
		assert.Nil(t, batchErr)
		assert.NotEmpty(t, batchID)

		assert.Eventually(t, func() bool {
			b, found := c.BatchStatus(batchID)
			return found && b.Status == core.BatchCompleted
		}, 2*time.Second, 10*time.Millisecond)

		b, found := c.BatchStatus(batchID)
		assert.True(t, found)
		assert.Equal(t, 3, b.Submitted)
		assert.Equal(t, 3, b.Accepted)
		assert.False(t, b.CompletedAt.IsZero())
	})

	t.Run("PartialStatusOnMixedBatch", func(t *testing.T) {
		c := NewCoordinator(testIngestConfig(), nil, nil, nil, nil, logger)
		defer c.Shutdown()

		batch := testBatch(3)
		batch.Records[1].Message = ""

		batchID, batchErr := c.IngestAsync(context.Background(), batch, core.IngestOptions{})
		assert.Nil(t, batchErr)

		assert.Eventually(t, func() bool {
			b, found := c.BatchStatus(batchID)
			return found && b.Status == core.BatchPartial
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("GateFailureIsSynchronous", func(t *testing.T) {
		cfg := testIngestConfig()
		cfg.MaxRecordsPerBatch = 1
		c := NewCoordinator(cfg, nil, nil, nil, nil, logger)
		defer c.Shutdown()

		batchID, batchErr := c.IngestAsync(context.Background(), testBatch(2), core.IngestOptions{})
		assert.Empty(t, batchID)
		assert.NotNil(t, batchErr)
		assert.Equal(t, core.CodeTooManyRecords, batchErr.Code)
	})

	t.Run("UnknownBatchNotFound", func(t *testing.T) {
		c := NewCoordinator(testIngestConfig(), nil, nil, nil, nil, logger)
		defer c.Shutdown()

		_, found := c.BatchStatus("no-such-batch")
		assert.False(t, found)
	})
}
