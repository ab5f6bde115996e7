// FILE: src/internal/sink/sink.go
package sink

import (
	"context"
	"time"

	"logrelay/src/internal/core"
)

// Sink is a durable write destination for accepted log records.
// Write failures are the sink's own problem: the ingestion path logs them
// as warnings and never surfaces them to producers.
type Sink interface {
	// Write persists a batch of accepted records
	Write(ctx context.Context, records []core.LogRecord) error

	// Start begins background processing
	Start(ctx context.Context) error

	// Stop flushes and shuts down the sink
	Stop()

	// GetStats returns sink statistics
	GetStats() Stats
}

// Stats contains statistics about a sink
type Stats struct {
	Type          string
	TotalRecords  uint64
	TotalBatches  uint64
	FailedBatches uint64
	StartTime     time.Time
	LastWrite     time.Time
	Details       map[string]any
}
