// FILE: src/internal/stream/registry.go
package stream

import (
	"sync"
	"sync/atomic"

	"github.com/lixenwraith/log"
)

// Registry tracks every live subscriber connection by id. It holds
// back-references only: a closed connection is removed immediately and
// the registry never extends its lifetime.
type Registry struct {
	conns  map[string]*Connection
	mu     sync.RWMutex
	logger *log.Logger

	totalOpened atomic.Uint64
	totalClosed atomic.Uint64
}

// NewRegistry creates an empty connection registry
func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]*Connection),
		logger: logger,
	}
}

// Add registers a connection
func (r *Registry) Add(c *Connection) {
	r.mu.Lock()
	r.conns[c.ID] = c
	r.mu.Unlock()

	r.totalOpened.Add(1)
	r.logger.Debug("msg", "Connection registered",
		"component", "registry",
		"connection_id", c.ID)
}

// Remove drops a connection from the registry
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	_, existed := r.conns[id]
	delete(r.conns, id)
	r.mu.Unlock()

	if existed {
		r.totalClosed.Add(1)
	}
}

// Get returns a connection by id
func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// Range calls fn for every registered connection. fn must not block.
func (r *Registry) Range(fn func(c *Connection)) {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		fn(c)
	}
}

// Disconnect force-closes one connection. Returns false if unknown.
func (r *Registry) Disconnect(id, reason string) bool {
	c, ok := r.Get(id)
	if !ok {
		return false
	}
	c.Close(reason)
	return true
}

// DisconnectIdentity force-closes every connection authenticated as the
// given identity, returning how many were closed
func (r *Registry) DisconnectIdentity(identity, reason string) int {
	var closed int
	r.Range(func(c *Connection) {
		if c.Identity() == identity {
			c.Close(reason)
			closed++
		}
	})
	return closed
}

// CloseAll tears down every connection, used at shutdown
func (r *Registry) CloseAll(reason string) {
	r.Range(func(c *Connection) {
		c.Close(reason)
	})
}

// GetStats returns aggregate registry statistics
func (r *Registry) GetStats() map[string]any {
	var open, subscriptions, backpressured int

	r.mu.RLock()
	for _, c := range r.conns {
		if c.State() == StateOpen {
			open++
		}
		subscriptions += c.SubscriptionCount()
		if c.Backpressured() {
			backpressured++
		}
	}
	tracked := len(r.conns)
	r.mu.RUnlock()

	return map[string]any{
		"tracked_connections": tracked,
		"open_connections":    open,
		"subscriptions":       subscriptions,
		"backpressured":       backpressured,
		"total_opened":        r.totalOpened.Load(),
		"total_closed":        r.totalClosed.Load(),
	}
}
