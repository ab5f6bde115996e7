// FILE: src/internal/stream/distributor_test.go
package stream

import (
	"encoding/json"
	"testing"
	"time"

	"logrelay/src/internal/core"

	"github.com/stretchr/testify/assert"
)

func countLogFrames(transport *fakeTransport) int {
	transport.mu.Lock()
	defer transport.mu.Unlock()

	var count int
	for _, frame := range transport.frames {
		var msg ServerMessage
		if json.Unmarshal(frame, &msg) == nil && msg.Type == TypeLog {
			count++
		}
	}
	return count
}

func TestDistributor_FanOut(t *testing.T) {
	logger := newTestLogger()
	registry := NewRegistry(logger)

	subscriber := func(domain string) (*Connection, *fakeTransport) {
		transport := &fakeTransport{}
		c := NewConnection(transport, nil, testStreamConfig(), logger,
			func(closed *Connection, reason string) {
				registry.Remove(closed.ID)
			})
		registry.Add(c)
		c.Start()

		send(c, ClientMessage{Action: ActionSubscribe, Filters: filterClause("domain", domain)})
		return c, transport
	}

	billingConn, billingTransport := subscriber("billing")
	authConn, authTransport := subscriber("auth")
	defer billingConn.Close("test_done")
	defer authConn.Close("test_done")

	d := NewDistributor(registry, 64, logger)
	d.Start()
	defer d.Stop()

	d.Publish(core.LogRecord{
		Level:       core.LevelError,
		Domain:      core.DomainBilling,
		ServiceName: "invoicer",
		Message:     "charge declined",
	})

	// Exactly one subscriber matches
	assert.Eventually(t, func() bool {
		return countLogFrames(billingTransport) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, countLogFrames(authTransport))

	stats := d.GetStats()
	assert.Equal(t, uint64(1), stats["total_published"])
	assert.Equal(t, uint64(0), stats["total_dropped"])
}

func TestDistributor_PublishNeverBlocks(t *testing.T) {
	registry := NewRegistry(newTestLogger())

	// Not started: the buffer fills and overflow is dropped
	d := NewDistributor(registry, 1, newTestLogger())

	d.Publish(core.LogRecord{Message: "first"})
	d.Publish(core.LogRecord{Message: "second"})

	stats := d.GetStats()
	assert.Equal(t, uint64(1), stats["total_published"])
	assert.Equal(t, uint64(1), stats["total_dropped"])
}

func TestRegistry(t *testing.T) {
	logger := newTestLogger()

	t.Run("AddGetRemove", func(t *testing.T) {
		r := NewRegistry(logger)
		c, _ := newTestConnection(t, testStreamConfig())
		defer c.Close("test_done")

		r.Add(c)
		got, found := r.Get(c.ID)
		assert.True(t, found)
		assert.Equal(t, c, got)

		r.Remove(c.ID)
		_, found = r.Get(c.ID)
		assert.False(t, found)
	})

	t.Run("DisconnectUnknown", func(t *testing.T) {
		r := NewRegistry(logger)
		assert.False(t, r.Disconnect("nope", "test"))
	})

	t.Run("DisconnectIdentity", func(t *testing.T) {
		r := NewRegistry(logger)

		c1, _ := newTestConnection(t, testStreamConfig())
		c2, _ := newTestConnection(t, testStreamConfig())
		r.Add(c1)
		r.Add(c2)

		// Auth disabled connections share the anonymous identity
		closed := r.DisconnectIdentity("anonymous", "admin_disconnect")
		assert.Equal(t, 2, closed)
		assert.Equal(t, StateClosed, c1.State())
		assert.Equal(t, StateClosed, c2.State())
	})

	t.Run("GetStats", func(t *testing.T) {
		r := NewRegistry(logger)
		c, _ := newTestConnection(t, testStreamConfig())
		defer c.Close("test_done")

		r.Add(c)
		send(c, ClientMessage{Action: ActionSubscribe})
		popReply(t, c)

		stats := r.GetStats()
		assert.Equal(t, 1, stats["tracked_connections"])
		assert.Equal(t, 1, stats["open_connections"])
		assert.Equal(t, 1, stats["subscriptions"])
		assert.Equal(t, uint64(1), stats["total_opened"])
	})
}
