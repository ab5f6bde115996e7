// FILE: src/internal/limit/producer.go
package limit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"logrelay/src/internal/config"

	"github.com/lixenwraith/log"
)

// Prevent unbounded map growth
const maxTrackedProducers = 10000

const idleProducerTTL = 10 * time.Minute

// ProducerLimiter enforces per-producer admission limits across three
// independent dimensions: request count, record count, and byte volume.
// A batch is admitted only when every dimension has capacity for it.
type ProducerLimiter struct {
	cfg    config.AdmissionConfig
	logger *log.Logger

	producers map[string]*producerBuckets
	mu        sync.Mutex

	// Statistics
	totalChecks   atomic.Uint64
	totalRejected atomic.Uint64

	ctx         context.Context
	cancel      context.CancelFunc
	cleanupDone chan struct{}
}

type producerBuckets struct {
	requests *TokenBucket
	records  *TokenBucket
	bytes    *TokenBucket
	lastSeen time.Time
}

// NewProducerLimiter creates an admission limiter from configuration
func NewProducerLimiter(cfg config.AdmissionConfig, logger *log.Logger) *ProducerLimiter {
	ctx, cancel := context.WithCancel(context.Background())

	l := &ProducerLimiter{
		cfg:         cfg,
		logger:      logger,
		producers:   make(map[string]*producerBuckets),
		ctx:         ctx,
		cancel:      cancel,
		cleanupDone: make(chan struct{}),
	}

	go l.cleanupLoop()

	logger.Info("msg", "Admission limiter initialized",
		"component", "admission",
		"requests_limit", cfg.Requests.Limit,
		"records_limit", cfg.Records.Limit,
		"bytes_limit", cfg.Bytes.Limit)

	return l
}

// Admit checks whether a batch of the given size may be submitted by the
// producer. All three dimensions must have capacity; tokens are consumed
// atomically across them. On rejection, retryAfter carries the wait until
// the nearest point every dimension could admit the batch.
func (l *ProducerLimiter) Admit(identity string, records int, bytes int64) (bool, time.Duration) {
	l.totalChecks.Add(1)

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucketsLocked(identity)

	nRecords := float64(records)
	nBytes := float64(bytes)

	if b.requests.HasN(1) && b.records.HasN(nRecords) && b.bytes.HasN(nBytes) {
		b.requests.TakeN(1)
		b.records.TakeN(nRecords)
		b.bytes.TakeN(nBytes)
		b.lastSeen = time.Now()
		return true, 0
	}

	l.totalRejected.Add(1)

	retryAfter := b.requests.WaitForN(1)
	if wait := b.records.WaitForN(nRecords); wait > retryAfter {
		retryAfter = wait
	}
	if wait := b.bytes.WaitForN(nBytes); wait > retryAfter {
		retryAfter = wait
	}

	l.logger.Debug("msg", "Batch rejected by admission limiter",
		"component", "admission",
		"producer", identity,
		"records", records,
		"bytes", bytes,
		"retry_after_ms", retryAfter.Milliseconds())

	return false, retryAfter
}

// MUST be called with mutex held
func (l *ProducerLimiter) bucketsLocked(identity string) *producerBuckets {
	b, exists := l.producers[identity]
	if !exists {
		if len(l.producers) >= maxTrackedProducers {
			l.evictOldestLocked()
		}
		b = &producerBuckets{
			requests: NewTokenBucket(l.cfg.Requests.Limit, l.cfg.Requests.Limit/l.cfg.Requests.WindowSeconds),
			records:  NewTokenBucket(l.cfg.Records.Limit, l.cfg.Records.Limit/l.cfg.Records.WindowSeconds),
			bytes:    NewTokenBucket(l.cfg.Bytes.Limit, l.cfg.Bytes.Limit/l.cfg.Bytes.WindowSeconds),
			lastSeen: time.Now(),
		}
		l.producers[identity] = b
	}
	return b
}

// MUST be called with mutex held
func (l *ProducerLimiter) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, b := range l.producers {
		if oldestKey == "" || b.lastSeen.Before(oldest) {
			oldestKey = key
			oldest = b.lastSeen
		}
	}
	if oldestKey != "" {
		delete(l.producers, oldestKey)
	}
}

func (l *ProducerLimiter) cleanupLoop() {
	defer close(l.cleanupDone)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			cutoff := time.Now().Add(-idleProducerTTL)
			for key, b := range l.producers {
				if b.lastSeen.Before(cutoff) {
					delete(l.producers, key)
				}
			}
			l.mu.Unlock()

		case <-l.ctx.Done():
			return
		}
	}
}

// Shutdown stops the cleanup goroutine
func (l *ProducerLimiter) Shutdown() {
	if l == nil {
		return
	}

	l.cancel()

	select {
	case <-l.cleanupDone:
	case <-time.After(2 * time.Second):
		l.logger.Warn("msg", "Admission limiter cleanup shutdown timeout",
			"component", "admission")
	}
}

// GetStats returns admission limiter statistics
func (l *ProducerLimiter) GetStats() map[string]any {
	l.mu.Lock()
	tracked := len(l.producers)
	l.mu.Unlock()

	return map[string]any{
		"tracked_producers": tracked,
		"total_checks":      l.totalChecks.Load(),
		"total_rejected":    l.totalRejected.Load(),
	}
}
