package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sagarc03/switchboard"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// TrustProxy replaces the remote address with X-Forwarded-For or
	// X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxy bool

	// MetricsPath serves Metrics when both are set.
	MetricsPath string
	Metrics     http.Handler

	// HealthPath answers liveness probes when set.
	HealthPath string

	Logger *slog.Logger
}

// NewRouter returns a chi router that serves the operational endpoints and
// passes every other request to server.
func NewRouter(server *switchboard.Server, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)

	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		r.Method(http.MethodGet, cfg.MetricsPath, cfg.Metrics)
		logger.Debug("metrics endpoint mounted", "path", cfg.MetricsPath)
	}
	if cfg.HealthPath != "" {
		r.Get(cfg.HealthPath, handleHealth)
	}

	r.Handle("/*", server)
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
