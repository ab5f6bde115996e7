// FILE: src/internal/stream/subscription.go
package stream

import (
	"sync/atomic"
	"time"

	"logrelay/src/internal/filter"
)

// Subscription is one named, filtered view of the record stream, owned by
// exactly one connection and never outliving it
type Subscription struct {
	ID        string
	Filters   *filter.Set
	CreatedAt time.Time

	MessagesSent     atomic.Uint64
	BytesTransferred atomic.Uint64

	paused atomic.Bool
}

func newSubscription(id string, filters *filter.Set) *Subscription {
	return &Subscription{
		ID:        id,
		Filters:   filters,
		CreatedAt: time.Now(),
	}
}

// Paused reports whether delivery is suspended for this subscription
func (s *Subscription) Paused() bool {
	return s.paused.Load()
}

// SetPaused toggles the backpressure flag without removing the
// subscription
func (s *Subscription) SetPaused(paused bool) {
	s.paused.Store(paused)
}

// GetStats returns subscription statistics
func (s *Subscription) GetStats() map[string]any {
	return map[string]any{
		"id":                s.ID,
		"created_at":        s.CreatedAt,
		"paused":            s.paused.Load(),
		"messages_sent":     s.MessagesSent.Load(),
		"bytes_transferred": s.BytesTransferred.Load(),
		"filters":           s.Filters.GetStats(),
	}
}
