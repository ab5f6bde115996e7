// FILE: src/internal/ingest/validator_test.go
package ingest

import (
	"strings"
	"testing"
	"time"

	"logrelay/src/internal/config"
	"logrelay/src/internal/core"

	"github.com/stretchr/testify/assert"
)

func testIngestConfig() config.IngestConfig {
	return config.IngestConfig{
		MaxRecordsPerBatch:   100,
		MaxPayloadBytes:      1 << 20,
		MaxMessageBytes:      256,
		MaxContextKeys:       3,
		MaxContextValueBytes: 64,
		MaxReportedErrors:    10,
	}
}

func validRecord() core.LogRecord {
	return core.LogRecord{
		ID:          "rec-1",
		Timestamp:   time.Now(),
		Level:       core.LevelInfo,
		ServiceName: "checkout",
		Message:     "order placed",
	}
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(testIngestConfig())

	t.Run("AcceptsValidRecord", func(t *testing.T) {
		rec := validRecord()
		assert.Nil(t, v.Validate(&rec, 0))
	})

	testCases := []struct {
		name   string
		mutate func(rec *core.LogRecord)
		field  string
	}{
		{"MissingID", func(r *core.LogRecord) { r.ID = "" }, "id"},
		{"MissingTimestamp", func(r *core.LogRecord) { r.Timestamp = time.Time{} }, "timestamp"},
		{"MissingLevel", func(r *core.LogRecord) { r.Level = "" }, "level"},
		{"UnknownLevel", func(r *core.LogRecord) { r.Level = "verbose" }, "level"},
		{"MissingServiceName", func(r *core.LogRecord) { r.ServiceName = "" }, "service_name"},
		{"MissingMessage", func(r *core.LogRecord) { r.Message = "" }, "message"},
		{"OversizedMessage", func(r *core.LogRecord) { r.Message = strings.Repeat("x", 257) }, "message"},
		{"UnknownDomain", func(r *core.LogRecord) { r.Domain = "warehouse" }, "domain"},
		{"TooManyContextKeys", func(r *core.LogRecord) {
			r.Context = map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"}
		}, "context"},
		{"OversizedContextValue", func(r *core.LogRecord) {
			r.Context = map[string]string{"trace": strings.Repeat("y", 65)}
		}, "context.trace"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := validRecord()
			tc.mutate(&rec)

			rej := v.Validate(&rec, 7)
			assert.NotNil(t, rej)
			assert.Equal(t, 7, rej.Index)
			assert.Equal(t, core.CodeValidationFailure, rej.Code)
			assert.Equal(t, tc.field, rej.Field)
		})
	}

	t.Run("EmptyDomainIsAccepted", func(t *testing.T) {
		rec := validRecord()
		rec.Domain = ""
		assert.Nil(t, v.Validate(&rec, 0))
	})

	t.Run("KnownDomainIsAccepted", func(t *testing.T) {
		rec := validRecord()
		rec.Domain = core.DomainBilling
		assert.Nil(t, v.Validate(&rec, 0))
	})
}
