// FILE: src/internal/server/http.go
package server

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"logrelay/src/internal/auth"
	"logrelay/src/internal/config"
	"logrelay/src/internal/core"
	"logrelay/src/internal/ingest"
	"logrelay/src/internal/stream"
	"logrelay/src/internal/version"

	"github.com/google/uuid"
	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/valyala/fasthttp"
)

// HTTPServer exposes the ingestion API and the administrative surface
type HTTPServer struct {
	cfg           config.HTTPConfig
	coordinator   *ingest.Coordinator
	registry      *stream.Registry
	distributor   *stream.Distributor
	authenticator *auth.Authenticator
	logger        *log.Logger

	server    *fasthttp.Server
	startTime time.Time

	totalRequests  atomic.Uint64
	deniedRequests atomic.Uint64
}

// NewHTTPServer wires the ingestion API
func NewHTTPServer(cfg config.HTTPConfig, coordinator *ingest.Coordinator,
	registry *stream.Registry, distributor *stream.Distributor,
	authenticator *auth.Authenticator, logger *log.Logger) *HTTPServer {

	return &HTTPServer{
		cfg:           cfg,
		coordinator:   coordinator,
		registry:      registry,
		distributor:   distributor,
		authenticator: authenticator,
		logger:        logger,
		startTime:     time.Now(),
	}
}

// Start runs the server in the background
func (h *HTTPServer) Start() error {
	h.server = &fasthttp.Server{
		Handler:            h.requestHandler,
		DisableKeepalive:   false,
		StreamRequestBody:  true,
		CloseOnShutdown:    true,
		MaxRequestBodySize: h.cfg.MaxBodyBytes,
		ReadTimeout:        time.Duration(h.cfg.ReadTimeoutSeconds) * time.Second,
		Logger:             compat.NewFastHTTPAdapter(h.logger),
	}

	addr := fmt.Sprintf("%s:%d", h.cfg.Host, h.cfg.Port)

	errChan := make(chan error, 1)
	go func() {
		h.logger.Info("msg", "Ingestion API starting",
			"component", "http_server",
			"addr", addr)
		if err := h.server.ListenAndServe(addr); err != nil {
			h.logger.Error("msg", "Ingestion API failed",
				"component", "http_server",
				"error", err)
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop shuts the server down
func (h *HTTPServer) Stop() {
	if h.server != nil {
		if err := h.server.Shutdown(); err != nil {
			h.logger.Error("msg", "Error shutting down ingestion API",
				"component", "http_server",
				"error", err)
		}
	}
}

func (h *HTTPServer) requestHandler(ctx *fasthttp.RequestCtx) {
	h.totalRequests.Add(1)

	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case method == "POST" && path == "/ingest":
		h.handleIngest(ctx, false)
	case method == "POST" && path == "/ingest/async":
		h.handleIngest(ctx, true)
	case method == "GET" && strings.HasPrefix(path, "/batch/"):
		h.handleBatchStatus(ctx, strings.TrimPrefix(path, "/batch/"))
	case method == "GET" && path == "/status":
		h.handleStatus(ctx)
	case strings.HasPrefix(path, "/admin/"):
		h.handleAdmin(ctx, method, path)
	default:
		h.writeError(ctx, fasthttp.StatusNotFound,
			core.NewError(core.CodeInvalidRequest, "unknown endpoint %s %s", method, path))
	}
}

// authorize verifies the bearer token and required permission. Returns
// nil after writing the error response on failure.
func (h *HTTPServer) authorize(ctx *fasthttp.RequestCtx, perm auth.Permission) *auth.Principal {
	token := string(ctx.Request.Header.Peek("Authorization"))
	token = strings.TrimPrefix(token, "Bearer ")
	token = strings.TrimSpace(token)

	principal, err := h.authenticator.Verify(token, ctx.RemoteAddr().String())
	if err != nil {
		h.deniedRequests.Add(1)
		if coreErr, ok := err.(*core.Error); ok {
			h.writeError(ctx, statusFor(coreErr.Code), coreErr)
		} else {
			h.writeError(ctx, fasthttp.StatusUnauthorized,
				core.NewError(core.CodeAuthRequired, "authentication failed"))
		}
		return nil
	}

	if !principal.Has(perm) {
		h.deniedRequests.Add(1)
		h.writeError(ctx, fasthttp.StatusForbidden,
			core.NewError(core.CodeAccessDenied, "identity %q lacks %q permission", principal.Identity, perm))
		return nil
	}

	return principal
}

func (h *HTTPServer) handleIngest(ctx *fasthttp.RequestCtx, async bool) {
	principal := h.authorize(ctx, auth.PermIngest)
	if principal == nil {
		return
	}

	body := ctx.PostBody()
	batch, opts, parseErr := parseBatch(body)
	if parseErr != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, parseErr)
		return
	}
	batch.Producer = principal.Identity
	batch.PayloadSize = int64(len(body))

	if async {
		batchID, batchErr := h.coordinator.IngestAsync(ctx, *batch, opts)
		if batchErr != nil {
			h.writeError(ctx, statusFor(batchErr.Code), batchErr)
			return
		}
		h.writeJSON(ctx, fasthttp.StatusAccepted, map[string]any{"batch_id": batchID})
		return
	}

	result, batchErr := h.coordinator.Ingest(ctx, *batch, opts)
	if batchErr != nil {
		h.writeError(ctx, statusFor(batchErr.Code), batchErr)
		return
	}
	h.writeJSON(ctx, fasthttp.StatusOK, result)
}

func (h *HTTPServer) handleBatchStatus(ctx *fasthttp.RequestCtx, batchID string) {
	principal := h.authorize(ctx, auth.PermIngest)
	if principal == nil {
		return
	}

	batch, found := h.coordinator.BatchStatus(batchID)
	if !found {
		h.writeError(ctx, fasthttp.StatusNotFound,
			core.NewError(core.CodeInvalidRequest, "unknown batch %q", batchID))
		return
	}
	h.writeJSON(ctx, fasthttp.StatusOK, batch)
}

func (h *HTTPServer) handleStatus(ctx *fasthttp.RequestCtx) {
	status := map[string]any{
		"service":        "logrelay",
		"version":        version.String(),
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
		"ingestion":      h.coordinator.GetStats(),
		"connections":    h.registry.GetStats(),
		"distribution":   h.distributor.GetStats(),
		"http": map[string]any{
			"total_requests":  h.totalRequests.Load(),
			"denied_requests": h.deniedRequests.Load(),
		},
	}
	h.writeJSON(ctx, fasthttp.StatusOK, status)
}

func (h *HTTPServer) handleAdmin(ctx *fasthttp.RequestCtx, method, path string) {
	principal := h.authorize(ctx, auth.PermAdmin)
	if principal == nil {
		return
	}

	parts := strings.Split(strings.TrimPrefix(path, "/admin/"), "/")

	switch {
	case method == "GET" && len(parts) == 1 && parts[0] == "connections":
		stats := make([]map[string]any, 0)
		h.registry.Range(func(c *stream.Connection) {
			stats = append(stats, c.GetStats())
		})
		h.writeJSON(ctx, fasthttp.StatusOK, map[string]any{
			"aggregate":   h.registry.GetStats(),
			"connections": stats,
		})

	case method == "POST" && len(parts) == 3 && parts[0] == "connections":
		h.handleConnectionAction(ctx, parts[1], parts[2])

	case method == "POST" && len(parts) == 3 && parts[0] == "identities" && parts[2] == "disconnect":
		closed := h.registry.DisconnectIdentity(parts[1], "admin_disconnect")
		h.writeJSON(ctx, fasthttp.StatusOK, map[string]any{"closed": closed})

	default:
		h.writeError(ctx, fasthttp.StatusNotFound,
			core.NewError(core.CodeInvalidRequest, "unknown admin endpoint %s %s", method, path))
	}
}

func (h *HTTPServer) handleConnectionAction(ctx *fasthttp.RequestCtx, connectionID, action string) {
	conn, found := h.registry.Get(connectionID)
	if !found {
		h.writeError(ctx, fasthttp.StatusNotFound,
			core.NewError(core.CodeInvalidRequest, "unknown connection %q", connectionID))
		return
	}

	switch action {
	case "disconnect":
		conn.Close("admin_disconnect")
		h.writeJSON(ctx, fasthttp.StatusOK, map[string]any{"closed": true})
	case "pause":
		conn.SetAdminPaused(true)
		h.writeJSON(ctx, fasthttp.StatusOK, map[string]any{"paused": true})
	case "resume":
		conn.SetAdminPaused(false)
		h.writeJSON(ctx, fasthttp.StatusOK, map[string]any{"paused": false})
	default:
		h.writeError(ctx, fasthttp.StatusNotFound,
			core.NewError(core.CodeInvalidRequest, "unknown connection action %q", action))
	}
}

func (h *HTTPServer) writeJSON(ctx *fasthttp.RequestCtx, status int, body any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	json.NewEncoder(ctx).Encode(body)
}

func (h *HTTPServer) writeError(ctx *fasthttp.RequestCtx, status int, err *core.Error) {
	if err.CorrelationID == "" {
		err.CorrelationID = uuid.NewString()
	}
	if err.RetryAfterMs > 0 {
		ctx.Response.Header.Set("Retry-After",
			fmt.Sprintf("%d", (err.RetryAfterMs+999)/1000))
	}
	h.writeJSON(ctx, status, map[string]any{"error": err})
}

func statusFor(code core.Code) int {
	switch code {
	case core.CodeAuthRequired:
		return fasthttp.StatusUnauthorized
	case core.CodeAccessDenied:
		return fasthttp.StatusForbidden
	case core.CodePayloadTooLarge:
		return fasthttp.StatusRequestEntityTooLarge
	case core.CodeRateLimitExceeded:
		return fasthttp.StatusTooManyRequests
	case core.CodeTooManyRecords, core.CodeValidationFailure, core.CodeInvalidRequest:
		return fasthttp.StatusBadRequest
	default:
		return fasthttp.StatusInternalServerError
	}
}
