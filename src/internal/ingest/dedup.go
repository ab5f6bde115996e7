// FILE: src/internal/ingest/dedup.go
package ingest

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"logrelay/src/internal/core"

	"github.com/zeebo/blake3"
)

// Deduplicator drops records whose fingerprint was seen recently.
// Bounded memory: on overflow the oldest tenth of the window is evicted in
// bulk. Advisory only; the window does not survive restarts.
type Deduplicator struct {
	capacity int

	seen  map[[32]byte]struct{}
	order [][32]byte
	mu    sync.Mutex

	totalChecked    atomic.Uint64
	totalDuplicates atomic.Uint64
	totalEvicted    atomic.Uint64
}

// NewDeduplicator creates a deduplicator with the given window capacity
func NewDeduplicator(capacity int) *Deduplicator {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Deduplicator{
		capacity: capacity,
		seen:     make(map[[32]byte]struct{}, capacity),
		order:    make([][32]byte, 0, capacity),
	}
}

// Fingerprint derives the dedup key from a record's core fields
func Fingerprint(rec *core.LogRecord) [32]byte {
	h := blake3.New()
	h.WriteString(rec.ServiceName)
	h.Write([]byte{0})
	h.WriteString(string(rec.Level))
	h.Write([]byte{0})
	h.WriteString(rec.Message)

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(rec.Timestamp.UnixNano()))
	h.Write(ts[:])

	var fp [32]byte
	copy(fp[:], h.Sum(nil))
	return fp
}

// Seen records the fingerprint and reports whether it was already present
// in the window
func (d *Deduplicator) Seen(rec *core.LogRecord) bool {
	d.totalChecked.Add(1)
	fp := Fingerprint(rec)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, dup := d.seen[fp]; dup {
		d.totalDuplicates.Add(1)
		return true
	}

	if len(d.order) >= d.capacity {
		d.evictLocked()
	}

	d.seen[fp] = struct{}{}
	d.order = append(d.order, fp)
	return false
}

// Evicts the oldest ~10% in one pass to amortize eviction cost.
// MUST be called with mutex held.
func (d *Deduplicator) evictLocked() {
	n := d.capacity / 10
	if n < 1 {
		n = 1
	}
	for _, fp := range d.order[:n] {
		delete(d.seen, fp)
	}
	d.order = append(d.order[:0], d.order[n:]...)
	d.totalEvicted.Add(uint64(n))
}

// GetStats returns deduplicator statistics
func (d *Deduplicator) GetStats() map[string]any {
	d.mu.Lock()
	window := len(d.order)
	d.mu.Unlock()

	return map[string]any{
		"capacity":         d.capacity,
		"window_size":      window,
		"total_checked":    d.totalChecked.Load(),
		"total_duplicates": d.totalDuplicates.Load(),
		"total_evicted":    d.totalEvicted.Load(),
	}
}
