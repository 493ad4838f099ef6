// Package server exposes the ingester over HTTP: payload intake, health,
// admin gate control, the websocket relay and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/cgm-ingest/internal/monitor"
	"github.com/rickgao/cgm-ingest/internal/pipeline"
	"github.com/rickgao/cgm-ingest/internal/version"
)

// Intake accepts raw JSON payloads.
type Intake interface {
	HandleRaw(data []byte) pipeline.Outcome
	Stats() pipeline.Stats
}

// Pinger reports store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker reports background dependency checks.
type Checker interface {
	Results() map[string]monitor.Result
}

// Source describes the configured CGM integration.
type Source struct {
	Sensor            string `json:"sensor"`
	Label             string `json:"label"`
	AdvancedFiltering bool   `json:"advanced_filtering"`
}

// Config holds HTTP surface settings.
type Config struct {
	InstanceID   string
	HTTPPath     string // Intake path, e.g. "/api/v1/glimp"
	MaxBodyBytes int64
	MetricsPath  string
	Source       Source
}

// Deps are the collaborators served over HTTP. Relay, Metrics and Checks are optional.
type Deps struct {
	Intake  Intake
	Gate    *pipeline.Toggle
	Store   Pinger
	Checks  Checker
	Relay   http.Handler
	Metrics http.Handler
}

// NewHandler builds the HTTP mux.
func NewHandler(cfg Config, deps Deps, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}

	s := &server{cfg: cfg, deps: deps, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+cfg.HTTPPath, s.handleIntake)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /admin/enable", s.handleGate(true))
	mux.HandleFunc("POST /admin/disable", s.handleGate(false))
	if deps.Relay != nil {
		mux.Handle("GET /ws/relay", deps.Relay)
	}
	if deps.Metrics != nil && cfg.MetricsPath != "" {
		mux.Handle("GET "+cfg.MetricsPath, deps.Metrics)
	}
	return mux
}

type server struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

func (s *server) handleIntake(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	outcome := s.deps.Intake.HandleRaw(body)
	switch outcome {
	case pipeline.OutcomeQueued:
		writeJSON(w, http.StatusAccepted, map[string]string{"outcome": outcome.String()})
	case pipeline.OutcomeGated:
		w.WriteHeader(http.StatusNoContent)
	case pipeline.OutcomeRejected:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"outcome": outcome.String()})
	default:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"outcome": outcome.String()})
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := struct {
		Status     string         `json:"status"`
		InstanceID string         `json:"instance_id"`
		Version    string         `json:"version"`
		Source     Source         `json:"source"`
		Enabled    bool           `json:"enabled"`
		Components map[string]any `json:"components"`
	}{
		Status:     "healthy",
		InstanceID: s.cfg.InstanceID,
		Version:    version.Version,
		Source:     s.cfg.Source,
		Enabled:    s.deps.Gate == nil || s.deps.Gate.Enabled(),
		Components: make(map[string]any),
	}

	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["store"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["store"] = "connected"
		}
	}

	if s.deps.Checks != nil {
		for name, res := range s.deps.Checks.Results() {
			health.Components[name] = res
			switch {
			case res.Up:
			case res.Critical:
				health.Status = "unhealthy"
			case health.Status == "healthy":
				health.Status = "degraded"
			}
		}
	}

	if s.deps.Intake != nil {
		stats := s.deps.Intake.Stats()
		health.Components["pipeline"] = map[string]any{
			"received":     stats.Received,
			"queued":       stats.Queued,
			"inserted":     stats.Inserted,
			"duplicates":   stats.Duplicates,
			"rejected":     stats.Rejected,
			"store_failed": stats.StoreFailed,
			"queue_depth":  stats.Queue.Depth,
			"queue_peak":   stats.Queue.Peak,
		}
		if stats.StoreFailed > 0 && health.Status == "healthy" {
			health.Status = "degraded"
		}
	}

	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *server) handleGate(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Gate == nil {
			http.Error(w, "gate not configurable", http.StatusNotImplemented)
			return
		}
		prev := s.deps.Gate.Set(enabled)
		if prev != enabled {
			s.logger.Info("source gate changed", "enabled", enabled, "remote", r.RemoteAddr)
		}
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
