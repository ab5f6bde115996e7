// FILE: src/internal/core/record.go
package core

import (
	"time"
)

// Level classifies the severity of a log record
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

var validLevels = map[Level]struct{}{
	LevelDebug: {},
	LevelInfo:  {},
	LevelWarn:  {},
	LevelError: {},
	LevelFatal: {},
}

// ValidLevel reports whether l is a recognized severity
func ValidLevel(l Level) bool {
	_, ok := validLevels[l]
	return ok
}

// Domain tags the subsystem a record originated from
type Domain string

const (
	DomainAPI      Domain = "api"
	DomainAuth     Domain = "auth"
	DomainBilling  Domain = "billing"
	DomainDatabase Domain = "database"
	DomainNetwork  Domain = "network"
	DomainSystem   Domain = "system"
)

// DefaultDomain is stamped onto records submitted without a domain tag
const DefaultDomain = DomainSystem

var validDomains = map[Domain]struct{}{
	DomainAPI:      {},
	DomainAuth:     {},
	DomainBilling:  {},
	DomainDatabase: {},
	DomainNetwork:  {},
	DomainSystem:   {},
}

// ValidDomain reports whether d is a recognized subsystem tag
func ValidDomain(d Domain) bool {
	_, ok := validDomains[d]
	return ok
}

// LogRecord is a single structured log record flowing through the pipeline.
// Immutable once accepted by the ingestion coordinator.
type LogRecord struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Level         Level             `json:"level"`
	Domain        Domain            `json:"domain,omitempty"`
	ServiceName   string            `json:"service_name"`
	Message       string            `json:"message"`
	Context       map[string]string `json:"context,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`

	// Enrichment applied at the ingestion boundary
	Source      string `json:"source,omitempty"`
	Environment string `json:"environment,omitempty"`
	Region      string `json:"region,omitempty"`

	// Serialized size of the submitted record, used for byte accounting
	RawSize int64 `json:"-"`
}
