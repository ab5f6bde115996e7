// FILE: src/internal/stream/connection.go
package stream

import (
	"encoding/json"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"logrelay/src/internal/auth"
	"logrelay/src/internal/config"
	"logrelay/src/internal/core"
	"logrelay/src/internal/filter"

	"github.com/google/uuid"
	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// State tracks the connection lifecycle
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport is the outbound half of a subscriber channel
type Transport interface {
	// Send writes one framed message; must not block indefinitely
	Send(data []byte) error

	// Close tears down the underlying channel
	Close() error

	// RemoteAddr identifies the peer for logging and auth throttling
	RemoteAddr() string
}

// Connection is one live subscriber channel. The send queue and
// subscription set belong to this connection alone; the distributor only
// enqueues through Deliver and reads subscription state.
type Connection struct {
	ID        string
	CreatedAt time.Time

	cfg           config.StreamConfig
	transport     Transport
	authenticator *auth.Authenticator
	logger        *log.Logger

	principal atomic.Pointer[auth.Principal]

	state        atomic.Int32
	lastActivity atomic.Int64 // unix nanos
	adminPaused  atomic.Bool

	queue   *sendQueue
	limiter *rate.Limiter
	notify  chan struct{}

	subs   map[string]*Subscription
	subsMu sync.RWMutex

	onClose func(c *Connection, reason string)

	messagesIn      atomic.Uint64
	messagesOut     atomic.Uint64
	rateLimited     atomic.Uint64
	backpressureHit atomic.Uint64

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewConnection creates a connection in the connecting state. onClose is
// invoked exactly once after teardown.
func NewConnection(transport Transport, authenticator *auth.Authenticator,
	cfg config.StreamConfig, logger *log.Logger,
	onClose func(c *Connection, reason string)) *Connection {

	c := &Connection{
		ID:            uuid.NewString(),
		CreatedAt:     time.Now(),
		cfg:           cfg,
		transport:     transport,
		authenticator: authenticator,
		logger:        logger,
		queue:         newSendQueue(cfg.MaxQueueSize),
		limiter:       rate.NewLimiter(rate.Limit(cfg.InboundMessagesPerSecond), cfg.InboundBurst),
		notify:        make(chan struct{}, 1),
		subs:          make(map[string]*Subscription),
		onClose:       onClose,
		done:          make(chan struct{}),
	}
	c.lastActivity.Store(time.Now().UnixNano())

	if authenticator == nil {
		// Auth disabled: connections open immediately as anonymous
		p, _ := authenticator.Verify("", transport.RemoteAddr())
		c.principal.Store(p)
		c.state.Store(int32(StateOpen))
	}

	return c
}

// Start launches the writer and liveness tasks
func (c *Connection) Start() {
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.writeLoop()
	}()
	go func() {
		defer c.wg.Done()
		c.livenessLoop()
	}()

	c.sendControl(ServerMessage{
		Type: TypeSystem,
		Data: map[string]any{
			"connection_id": c.ID,
			"state":         c.State().String(),
		},
	})
}

// State returns the current lifecycle state
func (c *Connection) State() State {
	return State(c.state.Load())
}

// Identity returns the authenticated identity, or "" before auth
func (c *Connection) Identity() string {
	if p := c.principal.Load(); p != nil {
		return p.Identity
	}
	return ""
}

// Touch records inbound activity for liveness
func (c *Connection) Touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// HandleMessage processes one inbound frame. Called only from the
// connection's own inbound task.
func (c *Connection) HandleMessage(raw []byte) {
	if c.State() == StateClosed || c.State() == StateDraining {
		return
	}

	c.Touch()
	c.messagesIn.Add(1)

	// Inbound rate limit: over-limit messages are answered, not dropped
	if !c.limiter.Allow() {
		c.rateLimited.Add(1)
		c.sendControl(ServerMessage{
			Type:  TypeError,
			Error: core.RateLimited(time.Second.Milliseconds()),
		})
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendControl(ServerMessage{
			Type:  TypeError,
			Error: core.NewError(core.CodeInvalidRequest, "malformed message: %v", err),
		})
		return
	}

	if msg.Action == ActionAuth {
		c.handleAuth(&msg)
		return
	}

	if c.State() != StateOpen {
		c.sendControl(ServerMessage{
			Type:  TypeError,
			Error: core.NewError(core.CodeAuthRequired, "authenticate before issuing requests"),
		})
		return
	}

	switch msg.Action {
	case ActionSubscribe:
		c.handleSubscribe(&msg)
	case ActionUnsubscribe:
		c.handleUnsubscribe(&msg)
	case ActionPause:
		c.handlePause(&msg, true)
	case ActionResume:
		c.handlePause(&msg, false)
	case ActionPing:
		c.sendControl(ServerMessage{
			Type: TypeSuccess,
			Data: map[string]any{"pong": true, "time": time.Now().UTC()},
		})
	default:
		c.sendControl(ServerMessage{
			Type:  TypeError,
			Error: core.NewError(core.CodeInvalidRequest, "unknown action %q", msg.Action),
		})
	}
}

func (c *Connection) handleAuth(msg *ClientMessage) {
	p, err := c.authenticator.Verify(msg.Token, c.transport.RemoteAddr())
	if err != nil {
		authErr, ok := err.(*core.Error)
		if !ok {
			authErr = core.NewError(core.CodeAccessDenied, "authentication failed")
		}
		c.sendControl(ServerMessage{Type: TypeError, Error: authErr})
		return
	}

	if !p.Has(auth.PermSubscribe) {
		c.sendControl(ServerMessage{
			Type:  TypeError,
			Error: core.NewError(core.CodeAccessDenied, "identity lacks subscribe permission"),
		})
		return
	}

	c.principal.Store(p)
	c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen))

	c.logger.Info("msg", "Subscriber authenticated",
		"component", "stream",
		"connection_id", c.ID,
		"identity", p.Identity)

	c.sendControl(ServerMessage{
		Type: TypeSuccess,
		Data: map[string]any{"connection_id": c.ID, "identity": p.Identity},
	})
}

func (c *Connection) handleSubscribe(msg *ClientMessage) {
	set, err := filter.Parse(msg.Filters)
	if err != nil {
		c.sendControl(ServerMessage{
			Type:  TypeError,
			Error: core.NewError(core.CodeInvalidRequest, "invalid filters: %v", err),
		})
		return
	}

	c.subsMu.Lock()
	if len(c.subs) >= c.cfg.MaxSubscriptionsPerConn {
		count := len(c.subs)
		c.subsMu.Unlock()
		c.sendControl(ServerMessage{
			Type: TypeError,
			Error: core.NewError(core.CodeSubscriptionLimitExceeded,
				"connection has %d subscriptions, limit is %d",
				count, c.cfg.MaxSubscriptionsPerConn),
		})
		return
	}

	sub := newSubscription(uuid.NewString(), set)
	c.subs[sub.ID] = sub
	c.subsMu.Unlock()

	c.logger.Debug("msg", "Subscription created",
		"component", "stream",
		"connection_id", c.ID,
		"subscription_id", sub.ID,
		"filter_count", len(msg.Filters))

	c.sendControl(ServerMessage{
		Type:           TypeSuccess,
		SubscriptionID: sub.ID,
		Data: map[string]any{
			"subscription_id": sub.ID,
			"filters":         set.Configs(),
		},
	})
}

func (c *Connection) handleUnsubscribe(msg *ClientMessage) {
	c.subsMu.Lock()
	_, exists := c.subs[msg.SubscriptionID]
	if exists {
		delete(c.subs, msg.SubscriptionID)
	}
	c.subsMu.Unlock()

	if !exists {
		c.sendControl(ServerMessage{
			Type:           TypeError,
			SubscriptionID: msg.SubscriptionID,
			Error:          core.NewError(core.CodeSubscriptionNotFound, "unknown subscription %q", msg.SubscriptionID),
		})
		return
	}

	c.sendControl(ServerMessage{
		Type:           TypeSuccess,
		SubscriptionID: msg.SubscriptionID,
		Data:           map[string]any{"unsubscribed": true},
	})
}

func (c *Connection) handlePause(msg *ClientMessage, paused bool) {
	c.subsMu.RLock()
	sub, exists := c.subs[msg.SubscriptionID]
	c.subsMu.RUnlock()

	if !exists {
		c.sendControl(ServerMessage{
			Type:           TypeError,
			SubscriptionID: msg.SubscriptionID,
			Error:          core.NewError(core.CodeSubscriptionNotFound, "unknown subscription %q", msg.SubscriptionID),
		})
		return
	}

	sub.SetPaused(paused)
	c.sendControl(ServerMessage{
		Type:           TypeSuccess,
		SubscriptionID: msg.SubscriptionID,
		Data:           map[string]any{"paused": paused},
	})
}

// Deliver offers an accepted record to every matching, non-paused
// subscription. recJSON is the record serialized once by the distributor.
// Never blocks: a saturated queue triggers shedding instead.
func (c *Connection) Deliver(rec *core.LogRecord, recJSON []byte) {
	if c.State() != StateOpen || c.adminPaused.Load() {
		return
	}

	c.subsMu.RLock()
	subs := make([]*Subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.subsMu.RUnlock()

	for _, sub := range subs {
		if sub.Paused() {
			continue
		}
		if !sub.Filters.Match(rec) {
			continue
		}
		// Sampling last, independent per subscription
		if sampleRate := sub.Filters.SampleRate(); sampleRate < 1.0 {
			if rand.Float64() >= sampleRate {
				continue
			}
		}

		frame, err := json.Marshal(ServerMessage{
			Type:           TypeLog,
			SubscriptionID: sub.ID,
			Data:           json.RawMessage(recJSON),
		})
		if err != nil {
			continue
		}

		if !c.queue.Push(frame, PriorityNormal) {
			c.shedLoad()
			continue
		}

		sub.MessagesSent.Add(1)
		sub.BytesTransferred.Add(uint64(len(frame)))
	}

	c.kick()
}

// Backpressure: pause every subscription, then trim the queue to the
// highest-priority, most-recent half
func (c *Connection) shedLoad() {
	c.backpressureHit.Add(1)

	c.subsMu.RLock()
	for _, sub := range c.subs {
		sub.SetPaused(true)
	}
	c.subsMu.RUnlock()

	dropped := c.queue.Trim(c.cfg.MaxQueueSize / 2)

	c.logger.Warn("msg", "Subscriber cannot keep up, shedding queue",
		"component", "stream",
		"connection_id", c.ID,
		"dropped", dropped)

	c.sendControl(ServerMessage{
		Type: TypeSystem,
		Data: map[string]any{
			"event":   "backpressure",
			"dropped": dropped,
			"note":    "subscriptions paused; resume when ready",
		},
	})
}

// SetAdminPaused toggles delivery for the whole connection
func (c *Connection) SetAdminPaused(paused bool) {
	c.adminPaused.Store(paused)
}

// Backpressured reports whether shedding has paused this connection's
// subscriptions
func (c *Connection) Backpressured() bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()

	for _, sub := range c.subs {
		if sub.Paused() {
			return true
		}
	}
	return false
}

// SubscriptionCount returns the number of active subscriptions
func (c *Connection) SubscriptionCount() int {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	return len(c.subs)
}

// sendControl enqueues a control-priority message, shedding normal
// traffic if needed to make room
func (c *Connection) sendControl(msg ServerMessage) {
	frame, err := json.Marshal(msg)
	if err != nil {
		return
	}

	if !c.queue.Push(frame, PriorityControl) {
		c.queue.Trim(c.cfg.MaxQueueSize / 2)
		c.queue.Push(frame, PriorityControl)
	}
	c.kick()
}

func (c *Connection) kick() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *Connection) writeLoop() {
	for {
		select {
		case <-c.notify:
			for {
				data := c.queue.Pop()
				if data == nil {
					break
				}
				if err := c.transport.Send(append(data, '\n')); err != nil {
					c.logger.Debug("msg", "Subscriber write failed",
						"component", "stream",
						"connection_id", c.ID,
						"error", err)
					c.Close("write_error")
					return
				}
				c.messagesOut.Add(1)
			}

		case <-c.done:
			return
		}
	}
}

func (c *Connection) livenessLoop() {
	interval := time.Duration(c.cfg.HeartbeatIntervalSeconds) * time.Second
	staleAfter := interval * time.Duration(c.cfg.StaleAfterIntervals)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			idle := time.Since(time.Unix(0, c.lastActivity.Load()))
			if idle > staleAfter {
				c.sendControl(ServerMessage{
					Type:  TypeError,
					Error: core.NewError(core.CodeConnectionStale, "no activity for %s", idle.Round(time.Second)),
				})
				c.Close("stale")
				return
			}

			c.sendControl(ServerMessage{
				Type: TypeHeartbeat,
				Data: map[string]any{
					"time":       time.Now().UTC(),
					"queue_size": c.queue.Len(),
				},
			})

		case <-c.done:
			return
		}
	}
}

// Close tears down the connection once. Queued messages are discarded;
// subscriptions die with the connection.
func (c *Connection) Close(reason string) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateDraining))

		discarded := c.queue.Clear()
		c.state.Store(int32(StateClosed))
		close(c.done)

		c.subsMu.Lock()
		subCount := len(c.subs)
		c.subs = make(map[string]*Subscription)
		c.subsMu.Unlock()

		c.transport.Close()

		c.logger.Info("msg", "Connection closed",
			"component", "stream",
			"connection_id", c.ID,
			"reason", reason,
			"discarded", discarded,
			"subscriptions", subCount)

		if c.onClose != nil {
			c.onClose(c, reason)
		}
	})
}

// Wait blocks until the connection's tasks have exited
func (c *Connection) Wait() {
	c.wg.Wait()
}

// GetStats returns connection statistics
func (c *Connection) GetStats() map[string]any {
	c.subsMu.RLock()
	subStats := make([]map[string]any, 0, len(c.subs))
	for _, sub := range c.subs {
		subStats = append(subStats, sub.GetStats())
	}
	c.subsMu.RUnlock()

	return map[string]any{
		"connection_id":    c.ID,
		"identity":         c.Identity(),
		"state":            c.State().String(),
		"created_at":       c.CreatedAt,
		"last_activity":    time.Unix(0, c.lastActivity.Load()),
		"queue_size":       c.queue.Len(),
		"messages_in":      c.messagesIn.Load(),
		"messages_out":     c.messagesOut.Load(),
		"rate_limited":     c.rateLimited.Load(),
		"backpressure_hit": c.backpressureHit.Load(),
		"admin_paused":     c.adminPaused.Load(),
		"subscriptions":    subStats,
	}
}
