// FILE: src/internal/sink/memory.go
package sink

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"logrelay/src/internal/core"
)

// MemorySink retains the most recent records in a bounded ring.
// Used by tests and as a debugging tap.
type MemorySink struct {
	capacity int

	records []core.LogRecord
	mu      sync.Mutex

	totalRecords atomic.Uint64
	totalBatches atomic.Uint64
	startTime    time.Time
	lastWrite    atomic.Value // time.Time
}

// NewMemorySink creates a memory sink holding at most capacity records
func NewMemorySink(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = 1000
	}
	m := &MemorySink{
		capacity:  capacity,
		records:   make([]core.LogRecord, 0, capacity),
		startTime: time.Now(),
	}
	m.lastWrite.Store(time.Time{})
	return m
}

func (m *MemorySink) Start(ctx context.Context) error { return nil }

func (m *MemorySink) Write(ctx context.Context, records []core.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, records...)
	if overflow := len(m.records) - m.capacity; overflow > 0 {
		m.records = m.records[overflow:]
	}

	m.totalRecords.Add(uint64(len(records)))
	m.totalBatches.Add(1)
	m.lastWrite.Store(time.Now())
	return nil
}

// Records returns a snapshot of the retained records
func (m *MemorySink) Records() []core.LogRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]core.LogRecord, len(m.records))
	copy(out, m.records)
	return out
}

func (m *MemorySink) Stop() {}

func (m *MemorySink) GetStats() Stats {
	lastWrite, _ := m.lastWrite.Load().(time.Time)

	m.mu.Lock()
	held := len(m.records)
	m.mu.Unlock()

	return Stats{
		Type:         "memory",
		TotalRecords: m.totalRecords.Load(),
		TotalBatches: m.totalBatches.Load(),
		StartTime:    m.startTime,
		LastWrite:    lastWrite,
		Details: map[string]any{
			"capacity": m.capacity,
			"held":     held,
		},
	}
}
