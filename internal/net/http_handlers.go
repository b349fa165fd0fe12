package net

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"strings"
	"time"

	server "stream-rush/server"
	"stream-rush/server/internal/net/ws"
	"stream-rush/server/internal/session"
	"stream-rush/server/logging"
)

type HTTPHandlerConfig struct {
	AdminToken string
	Logger     *log.Logger
	Metrics    *logging.Metrics
	Router     *logging.Router
}

// NewHTTPHandler assembles the HTTP surface: websocket endpoint,
// health, diagnostics, and the bearer-gated admin operations.
func NewHTTPHandler(pipeline *server.Pipeline, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	mux := nethttp.NewServeMux()

	wsHandler := ws.NewHandler(pipeline, ws.HandlerConfig{Logger: logger})
	mux.HandleFunc("/ws", wsHandler.Handle)

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status      string                         `json:"status"`
			ServerTime  int64                          `json:"serverTime"`
			Subscribers []server.SubscriberDiagnostics `json:"subscribers"`
			QueueLength int                            `json:"queueLength"`
			Telemetry   map[string]uint64              `json:"telemetry,omitempty"`
			Logging     *logging.RouterStats           `json:"logging,omitempty"`
		}{
			Status:      "ok",
			ServerTime:  time.Now().UnixMilli(),
			Subscribers: pipeline.Hub().DiagnosticsSnapshot(),
			QueueLength: pipeline.QueueLength(),
		}
		if cfg.Metrics != nil {
			payload.Telemetry = cfg.Metrics.TelemetrySnapshot()
		}
		if cfg.Router != nil {
			stats := cfg.Router.Stats()
			payload.Logging = &stats
		}
		writeJSON(w, payload)
	})

	adminOps := map[string]func() session.Snapshot{
		"/admin/start":  pipeline.AdminStart,
		"/admin/stop":   pipeline.AdminStop,
		"/admin/pause":  pipeline.AdminPause,
		"/admin/resume": pipeline.AdminResume,
		"/admin/reset":  pipeline.AdminReset,
	}
	for path, op := range adminOps {
		op := op
		mux.HandleFunc(path, func(w nethttp.ResponseWriter, r *nethttp.Request) {
			if r.Method != nethttp.MethodPost {
				httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
				return
			}
			if !authorized(r, cfg.AdminToken) {
				httpError(w, "unauthorized", nethttp.StatusUnauthorized)
				return
			}
			snap := op()
			writeJSON(w, struct {
				Status string           `json:"status"`
				State  session.Snapshot `json:"state"`
			}{Status: "ok", State: snap})
		})
	}

	mux.HandleFunc("/admin/stats", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		if !authorized(r, cfg.AdminToken) {
			httpError(w, "unauthorized", nethttp.StatusUnauthorized)
			return
		}
		writeJSON(w, pipeline.StatsSnapshot())
	})

	mux.HandleFunc("/admin/cancel", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		if !authorized(r, cfg.AdminToken) {
			httpError(w, "unauthorized", nethttp.StatusUnauthorized)
			return
		}
		var req struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
			httpError(w, "missing id", nethttp.StatusBadRequest)
			return
		}
		removed := pipeline.CancelQueued(req.ID)
		if !removed {
			httpError(w, "not queued", nethttp.StatusNotFound)
			return
		}
		writeJSON(w, struct {
			Status string `json:"status"`
		}{Status: "ok"})
	})

	return mux
}

// authorized compares the bearer credential by exact match. There is
// no token hierarchy; one static secret guards the whole admin surface.
func authorized(r *nethttp.Request, token string) bool {
	if token == "" {
		return false
	}
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	return header[len(prefix):] == token
}

func writeJSON(w nethttp.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: message})
}
