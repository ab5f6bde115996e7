// FILE: src/internal/ingest/validator.go
package ingest

import (
	"fmt"
	"sync/atomic"

	"logrelay/src/internal/config"
	"logrelay/src/internal/core"
)

// Validator checks candidate records against schema and size constraints.
// A violation excludes only the offending record, never its siblings.
type Validator struct {
	cfg config.IngestConfig

	totalChecked  atomic.Uint64
	totalRejected atomic.Uint64
}

// NewValidator creates a validator from ingestion configuration
func NewValidator(cfg config.IngestConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Validate checks one candidate record. Returns nil if the record is
// acceptable, otherwise a structured rejection carrying the batch index.
func (v *Validator) Validate(rec *core.LogRecord, index int) *core.Rejection {
	v.totalChecked.Add(1)

	if rej := v.check(rec, index); rej != nil {
		v.totalRejected.Add(1)
		return rej
	}
	return nil
}

func (v *Validator) check(rec *core.LogRecord, index int) *core.Rejection {
	if rec.ID == "" {
		return reject(index, "missing required field", "id")
	}
	if rec.Timestamp.IsZero() {
		return reject(index, "missing required field", "timestamp")
	}
	if rec.Level == "" {
		return reject(index, "missing required field", "level")
	}
	if !core.ValidLevel(rec.Level) {
		return reject(index, fmt.Sprintf("unrecognized level %q", rec.Level), "level")
	}
	if rec.ServiceName == "" {
		return reject(index, "missing required field", "service_name")
	}
	if rec.Message == "" {
		return reject(index, "missing required field", "message")
	}
	if len(rec.Message) > v.cfg.MaxMessageBytes {
		return reject(index,
			fmt.Sprintf("message exceeds %d bytes", v.cfg.MaxMessageBytes), "message")
	}

	if rec.Domain != "" && !core.ValidDomain(rec.Domain) {
		return reject(index, fmt.Sprintf("unrecognized domain %q", rec.Domain), "domain")
	}

	if len(rec.Context) > v.cfg.MaxContextKeys {
		return reject(index,
			fmt.Sprintf("context has %d keys, limit is %d", len(rec.Context), v.cfg.MaxContextKeys),
			"context")
	}
	for key, value := range rec.Context {
		if len(value) > v.cfg.MaxContextValueBytes {
			return reject(index,
				fmt.Sprintf("context value for %q exceeds %d bytes", key, v.cfg.MaxContextValueBytes),
				"context."+key)
		}
	}

	return nil
}

func reject(index int, message, field string) *core.Rejection {
	return &core.Rejection{
		Index:   index,
		Code:    core.CodeValidationFailure,
		Message: message,
		Field:   field,
	}
}

// GetStats returns validator statistics
func (v *Validator) GetStats() map[string]any {
	return map[string]any{
		"total_checked":  v.totalChecked.Load(),
		"total_rejected": v.totalRejected.Load(),
	}
}
