// Package api exposes the HTTP surface: the host RPC endpoint, the
// context tool, the live decision stream, health, and metrics.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/betterclaw/betterclaw/internal/devicectx"
	"github.com/betterclaw/betterclaw/internal/pipeline"
	"github.com/betterclaw/betterclaw/internal/websocket"
)

// Router wires the HTTP handlers.
type Router struct {
	mux      *http.ServeMux
	pipeline *pipeline.Pipeline
	store    *devicectx.Store
	hub      *websocket.Hub
	version  string
}

// NewRouter creates the router. hub may be nil when the live stream is
// disabled.
func NewRouter(p *pipeline.Pipeline, store *devicectx.Store, hub *websocket.Hub, version string) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		pipeline: p,
		store:    store,
		hub:      hub,
		version:  version,
	}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.mux.HandleFunc("/rpc", r.handleRPC)
	r.mux.HandleFunc("/api/health", r.handleHealth)
	r.mux.HandleFunc("/api/context", r.handleContext)
	r.mux.Handle("/metrics", promhttp.Handler())
	if r.hub != nil {
		r.mux.HandleFunc("/ws", r.hub.HandleWebSocket)
	}
}

// Handler returns the root handler.
func (r *Router) Handler() http.Handler {
	return r.mux
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"version":     r.version,
		"initialized": r.pipeline.Initialized(),
	})
}

// handleContext implements the get_context tool: pretty-printed JSON of the
// selected context sections plus patterns.
func (r *Router) handleContext(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	include := map[string]bool{}
	if raw := strings.TrimSpace(req.URL.Query().Get("include")); raw != "" {
		for _, section := range strings.Split(raw, ",") {
			include[strings.TrimSpace(section)] = true
		}
	}
	all := len(include) == 0

	snapshot := r.store.Get()
	patterns, err := r.store.ReadPatterns()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read patterns for context tool")
	}

	payload := make(map[string]interface{})
	if all || include["device"] {
		payload["device"] = snapshot.Device
	}
	if all || include["activity"] {
		payload["activity"] = snapshot.Activity
	}
	if all || include["meta"] {
		payload["meta"] = snapshot.Meta
	}
	if all || include["patterns"] {
		payload["patterns"] = patterns
	}

	text, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		http.Error(w, "failed to render context", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(text)
	_, _ = w.Write([]byte("\n"))
}

// Summary returns the human-readable status text backing the host's slash
// command.
func (r *Router) Summary() string {
	return devicectx.Summarize(r.store.Get(), time.Now())
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
