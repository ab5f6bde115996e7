// FILE: src/internal/ingest/coordinator.go
package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"logrelay/src/internal/config"
	"logrelay/src/internal/core"
	"logrelay/src/internal/limit"
	"logrelay/src/internal/redact"
	"logrelay/src/internal/sink"

	"github.com/google/uuid"
	"github.com/lixenwraith/log"
)

// Distributor receives accepted records for live fan-out to subscribers
type Distributor interface {
	Publish(rec core.LogRecord)
}

// Batch is a producer submission: records plus metadata
type Batch struct {
	Source      string
	Producer    string
	Records     []core.LogRecord
	PayloadSize int64
}

// Coordinator runs the ingestion path: size gates → admission → per-record
// validate/dedup/redact/enrich → sink commit and distribution handoff.
type Coordinator struct {
	cfg       config.IngestConfig
	validator *Validator
	dedup     *Deduplicator
	admission *limit.ProducerLimiter
	redactor  redact.Redactor
	sinks     []sink.Sink
	dist      Distributor
	logger    *log.Logger

	batches map[string]*core.IngestionBatch
	mu      sync.RWMutex

	totalAccepted   atomic.Uint64
	totalRejected   atomic.Uint64
	totalDuplicates atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoordinator wires the ingestion pipeline. admission, redactor, and
// dist may be nil; sinks may be empty.
func NewCoordinator(cfg config.IngestConfig, admission *limit.ProducerLimiter,
	redactor redact.Redactor, sinks []sink.Sink, dist Distributor,
	logger *log.Logger) *Coordinator {

	ctx, cancel := context.WithCancel(context.Background())

	c := &Coordinator{
		cfg:       cfg,
		validator: NewValidator(cfg),
		dedup:     NewDeduplicator(0),
		admission: admission,
		redactor:  redactor,
		sinks:     sinks,
		dist:      dist,
		logger:    logger,
		batches:   make(map[string]*core.IngestionBatch),
		ctx:       ctx,
		cancel:    cancel,
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.retentionLoop()
	}()

	return c
}

// SetDedupCapacity overrides the default dedup window (before first use)
func (c *Coordinator) SetDedupCapacity(capacity int) {
	c.dedup = NewDeduplicator(capacity)
}

// Ingest processes a batch synchronously and returns the per-record
// outcome. Whole-batch failures (size gates, admission) return a
// *core.Error and no result.
func (c *Coordinator) Ingest(ctx context.Context, batch Batch, opts core.IngestOptions) (*core.IngestionResult, *core.Error) {
	correlationID := uuid.NewString()

	if batchErr := c.gate(batch); batchErr != nil {
		batchErr.CorrelationID = correlationID
		return nil, batchErr
	}

	result := c.process(ctx, batch, opts)
	result.CorrelationID = correlationID
	return result, nil
}

// IngestAsync registers the batch and processes it on a background task.
// Returns immediately with the batch id for status polling.
func (c *Coordinator) IngestAsync(ctx context.Context, batch Batch, opts core.IngestOptions) (string, *core.Error) {
	correlationID := uuid.NewString()

	if batchErr := c.gate(batch); batchErr != nil {
		batchErr.CorrelationID = correlationID
		return "", batchErr
	}

	tracked := &core.IngestionBatch{
		ID:        uuid.NewString(),
		Source:    batch.Source,
		Status:    core.BatchPending,
		Submitted: len(batch.Records),
		Options:   opts,
		CreatedAt: time.Now(),
	}

	c.mu.Lock()
	c.batches[tracked.ID] = tracked
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.updateBatch(tracked.ID, func(b *core.IngestionBatch) {
			b.Status = core.BatchProcessing
		})

		result := c.process(c.ctx, batch, opts)

		c.updateBatch(tracked.ID, func(b *core.IngestionBatch) {
			b.Accepted = result.Accepted
			b.Rejected = result.Rejected
			b.Duplicates = result.Duplicates
			b.Errors = result.Errors
			b.CompletedAt = time.Now()
			switch {
			case result.Rejected == 0 && result.Accepted > 0:
				b.Status = core.BatchCompleted
			case result.Accepted == 0 && result.Rejected > 0:
				b.Status = core.BatchFailed
			case result.Rejected > 0:
				b.Status = core.BatchPartial
			default:
				b.Status = core.BatchCompleted
			}
		})
	}()

	return tracked.ID, nil
}

// BatchStatus returns a snapshot of a tracked batch, or false if it was
// never registered or already evicted
func (c *Coordinator) BatchStatus(batchID string) (core.IngestionBatch, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, exists := c.batches[batchID]
	if !exists {
		return core.IngestionBatch{}, false
	}
	return *b, true
}

// Cheap fail-fast checks before any per-record work
func (c *Coordinator) gate(batch Batch) *core.Error {
	if len(batch.Records) > c.cfg.MaxRecordsPerBatch {
		return core.NewError(core.CodeTooManyRecords,
			"batch has %d records, limit is %d", len(batch.Records), c.cfg.MaxRecordsPerBatch)
	}
	if batch.PayloadSize > c.cfg.MaxPayloadBytes {
		return core.NewError(core.CodePayloadTooLarge,
			"payload is %d bytes, limit is %d", batch.PayloadSize, c.cfg.MaxPayloadBytes)
	}

	if c.admission != nil {
		admitted, retryAfter := c.admission.Admit(batch.Producer, len(batch.Records), batch.PayloadSize)
		if !admitted {
			return core.RateLimited(retryAfter.Milliseconds())
		}
	}

	return nil
}

func (c *Coordinator) process(ctx context.Context, batch Batch, opts core.IngestOptions) *core.IngestionResult {
	result := &core.IngestionResult{
		Submitted: len(batch.Records),
	}

	accepted := make([]core.LogRecord, 0, len(batch.Records))

	for i := range batch.Records {
		rec := batch.Records[i]

		if rej := c.validator.Validate(&rec, i); rej != nil {
			result.Rejected++
			if len(result.Errors) < c.cfg.MaxReportedErrors {
				result.Errors = append(result.Errors, *rej)
			}
			continue
		}

		if c.dedup.Seen(&rec) {
			result.Duplicates++
			continue
		}

		c.enrich(&rec, batch, opts)
		accepted = append(accepted, rec)
	}

	result.Accepted = len(accepted)
	result.Success = result.Rejected*2 < result.Submitted || result.Submitted == 0

	c.totalAccepted.Add(uint64(result.Accepted))
	c.totalRejected.Add(uint64(result.Rejected))
	c.totalDuplicates.Add(uint64(result.Duplicates))

	if len(accepted) > 0 {
		if opts.ProcessAsync {
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.commit(c.ctx, accepted)
			}()
		} else {
			c.commit(ctx, accepted)
		}

		if c.dist != nil {
			for i := range accepted {
				c.dist.Publish(accepted[i])
			}
		}
	}

	return result
}

func (c *Coordinator) enrich(rec *core.LogRecord, batch Batch, opts core.IngestOptions) {
	if (opts.Redact || c.cfg.Redact) && c.redactor != nil {
		rec.Message = c.redactor.Redact(rec.Message)
		if len(rec.Context) > 0 {
			redacted := make(map[string]string, len(rec.Context))
			for key, value := range rec.Context {
				redacted[key] = c.redactor.Redact(value)
			}
			rec.Context = redacted
		}
	}

	rec.Source = batch.Source
	if opts.Environment != "" {
		rec.Environment = opts.Environment
	} else {
		rec.Environment = c.cfg.Environment
	}
	if opts.Region != "" {
		rec.Region = opts.Region
	} else {
		rec.Region = c.cfg.Region
	}

	if rec.Domain == "" {
		rec.Domain = core.DefaultDomain
	}
	if rec.CorrelationID == "" {
		rec.CorrelationID = uuid.NewString()
	}
}

// Sink failures are warnings, never ingestion failures
func (c *Coordinator) commit(ctx context.Context, records []core.LogRecord) {
	for _, s := range c.sinks {
		if err := s.Write(ctx, records); err != nil {
			c.logger.Warn("msg", "Sink write failed",
				"component", "ingest",
				"sink", s.GetStats().Type,
				"records", len(records),
				"error", err)
		}
	}
}

func (c *Coordinator) updateBatch(id string, fn func(*core.IngestionBatch)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b, exists := c.batches[id]; exists {
		fn(b)
	}
}

// Evicts completed batches past the retention window
func (c *Coordinator) retentionLoop() {
	retention := time.Duration(c.cfg.BatchRetentionSec) * time.Second
	if retention <= 0 {
		retention = 5 * time.Minute
	}

	ticker := time.NewTicker(retention / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-retention)
			c.mu.Lock()
			for id, b := range c.batches {
				if !b.CompletedAt.IsZero() && b.CompletedAt.Before(cutoff) {
					delete(c.batches, id)
				}
			}
			c.mu.Unlock()

		case <-c.ctx.Done():
			return
		}
	}
}

// Shutdown waits for in-flight background batches, then stops
func (c *Coordinator) Shutdown() {
	c.logger.Info("msg", "Shutting down ingestion coordinator", "component", "ingest")
	c.cancel()
	c.wg.Wait()
}

// GetStats returns coordinator statistics
func (c *Coordinator) GetStats() map[string]any {
	c.mu.RLock()
	tracked := len(c.batches)
	c.mu.RUnlock()

	return map[string]any{
		"total_accepted":   c.totalAccepted.Load(),
		"total_rejected":   c.totalRejected.Load(),
		"total_duplicates": c.totalDuplicates.Load(),
		"tracked_batches":  tracked,
		"validator":        c.validator.GetStats(),
		"dedup":            c.dedup.GetStats(),
	}
}
