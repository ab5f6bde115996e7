// FILE: src/internal/stream/queue.go
package stream

import (
	"sort"
	"sync"
)

// Priority orders entries in a connection's send queue
type Priority uint8

const (
	PriorityRetry   Priority = iota // best-effort retries, shed first
	PriorityNormal                  // log payloads
	PriorityControl                 // control and error messages
)

type queueEntry struct {
	priority Priority
	seq      uint64
	data     []byte
}

// sendQueue is the bounded, priority-ordered outbound queue owned by one
// connection. Drain order is priority descending, then submission order.
type sendQueue struct {
	max     int
	entries []queueEntry
	seq     uint64
	mu      sync.Mutex
}

func newSendQueue(max int) *sendQueue {
	return &sendQueue{
		max:     max,
		entries: make([]queueEntry, 0, max),
	}
}

// Push enqueues data at the given priority. Returns false when the queue
// is at capacity; the caller decides how to shed.
func (q *sendQueue) Push(data []byte, priority Priority) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.max {
		return false
	}

	q.seq++
	q.entries = append(q.entries, queueEntry{
		priority: priority,
		seq:      q.seq,
		data:     data,
	})
	return true
}

// Pop removes and returns the highest-priority, oldest entry.
// Returns nil when the queue is empty.
func (q *sendQueue) Pop() []byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil
	}

	best := 0
	for i := 1; i < len(q.entries); i++ {
		e := &q.entries[i]
		b := &q.entries[best]
		if e.priority > b.priority || (e.priority == b.priority && e.seq < b.seq) {
			best = i
		}
	}

	data := q.entries[best].data
	q.entries = append(q.entries[:best], q.entries[best+1:]...)
	return data
}

// Trim sheds load down to keep entries, retaining the highest-priority,
// most-recent ones. Returns how many entries were discarded.
func (q *sendQueue) Trim(keep int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) <= keep {
		return 0
	}

	// Highest priority first; within a priority, newest first
	sort.Slice(q.entries, func(i, j int) bool {
		if q.entries[i].priority != q.entries[j].priority {
			return q.entries[i].priority > q.entries[j].priority
		}
		return q.entries[i].seq > q.entries[j].seq
	})

	dropped := len(q.entries) - keep
	q.entries = q.entries[:keep]

	// Restore submission order for delivery
	sort.Slice(q.entries, func(i, j int) bool {
		return q.entries[i].seq < q.entries[j].seq
	})

	return dropped
}

// Len returns the current queue depth
func (q *sendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Clear discards all entries, returning how many were dropped
func (q *sendQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.entries)
	q.entries = q.entries[:0]
	return n
}
