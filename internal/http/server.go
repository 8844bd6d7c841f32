// Package http exposes walks, health checks and metrics over HTTP.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vibechain/internal/core"
	"vibechain/internal/flood"
	"vibechain/internal/report"
	"vibechain/internal/vibe"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	serviceName     = "vibechain"
	maxRequestBytes = 64 << 10
	shutdownTimeout = 10 * time.Second
)

// Runner runs walks. *vibe.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, req vibe.Request) (report.Summary, error)
	Last() (report.Summary, bool)
}

// Pinger reports whether the player backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	config  *core.ServerConfig
	logger  *zap.Logger
	server  *http.Server
	gate    *flood.Floodgate
	metrics *Metrics
}

type handlers struct {
	logger   *zap.Logger
	runner   Runner
	defaults vibe.Request
	gate     *flood.Floodgate
	pinger   Pinger
	metrics  *Metrics
}

// NewServer wires the API around runner. Requests start from defaults; fields in the body override them.
// pinger may be nil, in which case /readyz always reports ready.
func NewServer(
	config *core.ServerConfig,
	logger *zap.Logger,
	runner Runner,
	defaults vibe.Request,
	pinger Pinger,
	metrics *Metrics,
) *Server {
	gate := flood.New(config.FloodLimitPerMinute)
	// Output files are a CLI concern.
	defaults.JSONOut = ""

	mux := setupRoutes(&handlers{
		logger:   logger,
		runner:   runner,
		defaults: defaults,
		gate:     gate,
		pinger:   pinger,
		metrics:  metrics,
	})

	return &Server{
		config:  config,
		logger:  logger,
		server:  createHTTPServer(config, mux),
		gate:    gate,
		metrics: metrics,
	}
}

func createHTTPServer(config *core.ServerConfig, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func setupRoutes(h *handlers) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /readyz", h.readyz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /api/vibe", h.startWalk)
	mux.HandleFunc("GET /api/vibe/last", h.lastWalk)
	mux.HandleFunc("GET /{$}", homeHandler(h.logger))

	return mux
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(h.logger, w, http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
}

func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			h.logger.Warn("Readiness check failed", zap.Error(err))
			writeJSON(h.logger, w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unavailable",
				"service": serviceName,
				"error":   err.Error(),
			})
			return
		}
	}
	writeJSON(h.logger, w, http.StatusOK, map[string]string{"status": "ready", "service": serviceName})
}

func (h *handlers) startWalk(w http.ResponseWriter, r *http.Request) {
	client := clientAddress(r)
	if !h.gate.Allow(client) {
		h.metrics.recordRejectedRequest("flood")
		wait := int(math.Ceil(h.gate.RetryAfter(client).Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(wait, 1)))
		writeError(h.logger, w, http.StatusTooManyRequests, "too many requests")
		return
	}

	req := h.defaults
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			h.metrics.recordRejectedRequest("invalid")
			writeError(h.logger, w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}
	// An explicit max_seconds replaces the configured duration cap.
	if req.MaxSeconds > 0 {
		req.MaxDuration = 0
	}

	h.logger.Info("Walk requested",
		zap.String("client", client),
		zap.String("seed", req.Seed().String()),
		zap.String("mode", req.Mode),
		zap.Bool("dry_run", req.DryRun))

	summary, err := h.runner.Run(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(h.logger, w, http.StatusOK, summary)
	case errors.Is(err, core.ErrBusy):
		h.metrics.recordRejectedRequest("busy")
		writeError(h.logger, w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrConfig), errors.Is(err, core.ErrNoSeed):
		h.metrics.recordRejectedRequest("invalid")
		writeError(h.logger, w, http.StatusBadRequest, err.Error())
	case summary.Outcome != "":
		h.logger.Warn("Walk failed", zap.Error(err))
		writeJSON(h.logger, w, http.StatusBadGateway, summary)
	default:
		h.logger.Error("Walk failed before starting", zap.Error(err))
		writeError(h.logger, w, http.StatusBadGateway, err.Error())
	}
}

func (h *handlers) lastWalk(w http.ResponseWriter, _ *http.Request) {
	summary, ok := h.runner.Last()
	if !ok {
		writeError(h.logger, w, http.StatusNotFound, "no walk has run yet")
		return
	}
	writeJSON(h.logger, w, http.StatusOK, summary)
}

func homeHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>vibechain</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .header { color: #333; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
        .endpoint a:hover { text-decoration: underline; }
        code { background: #f4f4f4; padding: 2px 4px; }
    </style>
</head>
<body>
    <h1 class="header">vibechain</h1>
    <p>Builds an MPD queue by walking similar tracks from a seed.</p>

    <h2>Endpoints</h2>
    <div class="endpoint"><code>POST /api/vibe</code> - Start a walk</div>
    <div class="endpoint"><a href="/api/vibe/last">Last walk</a> - Summary of the most recent walk</div>
    <div class="endpoint"><a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint"><a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint"><a href="/readyz">Ready</a> - Readiness check</div>
</body>
</html>`)); err != nil {
			logger.Debug("Failed to write home page", zap.Error(err))
		}
	}
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logger.Debug("Failed to write response", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, message string) {
	writeJSON(logger, w, status, map[string]string{"error": message})
}

func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
		s.gate.Stop()
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

func (s *Server) GetMetrics() *Metrics {
	return s.metrics
}
