// FILE: src/internal/core/batch.go
package core

import (
	"time"
)

// BatchStatus tracks the lifecycle of a submitted ingestion batch
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
	BatchPartial    BatchStatus = "partial"
)

// IngestOptions controls how a batch is processed
type IngestOptions struct {
	ProcessAsync bool   `json:"process_async,omitempty"`
	Redact       bool   `json:"redact,omitempty"`
	Environment  string `json:"environment,omitempty"`
	Region       string `json:"region,omitempty"`
}

// IngestionBatch is a producer-submitted group of records plus processing state.
// Mutated only by the ingestion coordinator; retained for a bounded window
// after completion so async submitters can poll status.
type IngestionBatch struct {
	ID          string        `json:"batch_id"`
	Source      string        `json:"source"`
	Status      BatchStatus   `json:"status"`
	Submitted   int           `json:"submitted"`
	Accepted    int           `json:"accepted"`
	Rejected    int           `json:"rejected"`
	Duplicates  int           `json:"duplicates"`
	Errors      []Rejection   `json:"errors,omitempty"`
	Options     IngestOptions `json:"-"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt time.Time     `json:"completed_at,omitzero"`
}

// Rejection describes why one record in a batch was excluded
type Rejection struct {
	Index   int    `json:"index"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// IngestionResult is the outcome of a synchronous batch submission
type IngestionResult struct {
	BatchID       string      `json:"batch_id"`
	Submitted     int         `json:"submitted"`
	Accepted      int         `json:"accepted"`
	Rejected      int         `json:"rejected"`
	Duplicates    int         `json:"duplicates"`
	Errors        []Rejection `json:"errors,omitempty"`
	Success       bool        `json:"success"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}
