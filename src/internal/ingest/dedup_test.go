// FILE: src/internal/ingest/dedup_test.go
package ingest

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeduplicator_Seen(t *testing.T) {
	now := time.Now()

	t.Run("FirstOccurrenceIsNotDuplicate", func(t *testing.T) {
		d := NewDeduplicator(100)
		rec := validRecord()
		rec.Timestamp = now

		assert.False(t, d.Seen(&rec))
		assert.True(t, d.Seen(&rec))
	})

	t.Run("IDDoesNotAffectFingerprint", func(t *testing.T) {
		d := NewDeduplicator(100)

		first := validRecord()
		first.Timestamp = now
		second := first
		second.ID = "rec-2"
		second.CorrelationID = "other"

		assert.False(t, d.Seen(&first))
		assert.True(t, d.Seen(&second))
	})

	t.Run("DifferentTimestampIsDistinct", func(t *testing.T) {
		d := NewDeduplicator(100)

		first := validRecord()
		first.Timestamp = now
		second := first
		second.Timestamp = now.Add(time.Millisecond)

		assert.False(t, d.Seen(&first))
		assert.False(t, d.Seen(&second))
	})

	t.Run("DifferentMessageIsDistinct", func(t *testing.T) {
		d := NewDeduplicator(100)

		first := validRecord()
		first.Timestamp = now
		second := first
		second.Message = "order cancelled"

		assert.False(t, d.Seen(&first))
		assert.False(t, d.Seen(&second))
	})
}

func TestDeduplicator_Eviction(t *testing.T) {
	d := NewDeduplicator(100)
	base := time.Now()

	for i := 0; i < 100; i++ {
		rec := validRecord()
		rec.Timestamp = base.Add(time.Duration(i) * time.Second)
		rec.Message = fmt.Sprintf("event %d", i)
		assert.False(t, d.Seen(&rec))
	}

	// Window is full; the next insert evicts the oldest tenth
	overflow := validRecord()
	overflow.Timestamp = base
	overflow.Message = "overflow"
	assert.False(t, d.Seen(&overflow))

	stats := d.GetStats()
	assert.Equal(t, uint64(10), stats["total_evicted"])
	assert.Equal(t, 91, stats["window_size"])

	// The evicted entry is forgotten and admitted again
	evicted := validRecord()
	evicted.Timestamp = base
	evicted.Message = "event 0"
	assert.False(t, d.Seen(&evicted))

	// A survivor is still remembered
	survivor := validRecord()
	survivor.Timestamp = base.Add(50 * time.Second)
	survivor.Message = "event 50"
	assert.True(t, d.Seen(&survivor))
}
