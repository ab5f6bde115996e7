// FILE: src/internal/stream/tcpserver.go
package stream

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"logrelay/src/internal/auth"
	"logrelay/src/internal/config"

	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/panjf2000/gnet/v2"
)

const (
	maxClientBufferSize = 1 * 1024 * 1024 // 1MB of unframed inbound data per client
	maxLineLength       = 256 * 1024      // 256KB max per client frame
	inboundTaskBuffer   = 64
)

// Server accepts persistent subscriber connections over TCP and speaks
// the NDJSON streaming protocol
type Server struct {
	cfg           config.StreamConfig
	registry      *Registry
	authenticator *auth.Authenticator
	logger        *log.Logger

	handler  *tcpHandler
	engine   *gnet.Engine
	engineMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

// NewServer creates the streaming server
func NewServer(cfg config.StreamConfig, registry *Registry,
	authenticator *auth.Authenticator, logger *log.Logger) *Server {

	return &Server{
		cfg:           cfg,
		registry:      registry,
		authenticator: authenticator,
		logger:        logger,
		done:          make(chan struct{}),
	}
}

// Start runs the gnet engine in the background
func (s *Server) Start() error {
	s.handler = &tcpHandler{
		server:  s,
		clients: make(map[gnet.Conn]*tcpClient),
	}

	addr := fmt.Sprintf("tcp://%s:%d", s.cfg.Host, s.cfg.Port)
	gnetLogger := compat.NewGnetAdapter(s.logger)

	errChan := make(chan error, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("msg", "Streaming server starting",
			"component", "stream_server",
			"addr", addr)

		err := gnet.Run(s.handler, addr,
			gnet.WithLogger(gnetLogger),
			gnet.WithMulticore(true),
			gnet.WithReusePort(true),
		)
		if err != nil {
			s.logger.Error("msg", "Streaming server failed",
				"component", "stream_server",
				"error", err)
		}
		errChan <- err
	}()

	// Wait briefly for the engine to start or fail
	select {
	case err := <-errChan:
		close(s.done)
		s.wg.Wait()
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop shuts the engine down and closes every connection
func (s *Server) Stop() {
	close(s.done)

	s.engineMu.Lock()
	engine := s.engine
	s.engineMu.Unlock()

	if engine != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		(*engine).Stop(ctx)
	}

	s.registry.CloseAll("server_shutdown")
	s.wg.Wait()

	s.logger.Info("msg", "Streaming server stopped", "component", "stream_server")
}

// Per-connection transport over gnet's async writer
type gnetTransport struct {
	conn gnet.Conn
}

func (t *gnetTransport) Send(data []byte) error {
	return t.conn.AsyncWrite(data, nil)
}

func (t *gnetTransport) Close() error {
	return t.conn.Close()
}

func (t *gnetTransport) RemoteAddr() string {
	if addr := t.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}

// tcpClient pairs a gnet connection with its pipeline connection and the
// inbound task feeding it
type tcpClient struct {
	conn    *Connection
	buffer  bytes.Buffer
	inbound chan []byte
}

// tcpHandler handles gnet events
type tcpHandler struct {
	gnet.BuiltinEventEngine
	server  *Server
	clients map[gnet.Conn]*tcpClient
	mu      sync.RWMutex
}

func (h *tcpHandler) OnBoot(eng gnet.Engine) gnet.Action {
	h.server.engineMu.Lock()
	h.server.engine = &eng
	h.server.engineMu.Unlock()

	h.server.logger.Debug("msg", "Streaming server booted",
		"component", "stream_server",
		"port", h.server.cfg.Port)
	return gnet.None
}

func (h *tcpHandler) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	transport := &gnetTransport{conn: c}

	conn := NewConnection(transport, h.server.authenticator, h.server.cfg,
		h.server.logger, func(closed *Connection, reason string) {
			h.server.registry.Remove(closed.ID)
		})

	client := &tcpClient{
		conn:    conn,
		inbound: make(chan []byte, inboundTaskBuffer),
	}

	h.mu.Lock()
	h.clients[c] = client
	h.mu.Unlock()

	h.server.registry.Add(conn)
	conn.Start()

	// One inbound task per connection: all subscription mutation happens
	// on this goroutine
	h.server.wg.Add(1)
	go func() {
		defer h.server.wg.Done()
		for line := range client.inbound {
			conn.HandleMessage(line)
		}
	}()

	h.server.logger.Debug("msg", "Subscriber connected",
		"component", "stream_server",
		"connection_id", conn.ID,
		"remote_addr", transport.RemoteAddr())

	return nil, gnet.None
}

func (h *tcpHandler) OnTraffic(c gnet.Conn) gnet.Action {
	h.mu.RLock()
	client, exists := h.clients[c]
	h.mu.RUnlock()

	if !exists {
		return gnet.Close
	}

	data, err := c.Next(-1)
	if err != nil {
		return gnet.Close
	}
	client.buffer.Write(data)

	if client.buffer.Len() > maxClientBufferSize {
		h.server.logger.Warn("msg", "Subscriber inbound buffer overflow",
			"component", "stream_server",
			"connection_id", client.conn.ID)
		return gnet.Close
	}

	for {
		line, err := client.buffer.ReadBytes('\n')
		if err != nil {
			// Partial frame stays buffered
			client.buffer.Write(line)
			break
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			continue
		}
		if len(line) > maxLineLength {
			h.server.logger.Warn("msg", "Subscriber frame too long",
				"component", "stream_server",
				"connection_id", client.conn.ID,
				"length", len(line))
			return gnet.Close
		}

		frame := make([]byte, len(line))
		copy(frame, line)

		select {
		case client.inbound <- frame:
		default:
			// Inbound task is saturated; the client is flooding faster
			// than its rate limit responses can discourage
			return gnet.Close
		}
	}

	return gnet.None
}

func (h *tcpHandler) OnClose(c gnet.Conn, err error) gnet.Action {
	h.mu.Lock()
	client, exists := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if exists {
		close(client.inbound)
		client.conn.Close("disconnect")
	}

	return gnet.None
}
