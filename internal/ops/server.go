// Package ops exposes health and progress endpoints for a running
// snapshot sweep. A full sweep takes the better part of an hour at one
// fetch per second, so the run is observable while it goes.
package ops

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/latamaq/latamaq/internal/collector"
)

// StatusSource reports run progress.
type StatusSource interface {
	Status() collector.Status
}

// RouterConfig holds configuration for the ops router.
type RouterConfig struct {
	Source  StatusSource
	Logger  zerolog.Logger
	Version string
}

// NewRouter builds the ops HTTP handler.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(httprate.LimitByIP(60, time.Minute))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, cfg.Logger, map[string]string{
			"status":  "healthy",
			"version": cfg.Version,
		})
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, cfg.Logger, cfg.Source.Status())
	})

	return r
}

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("failed to encode ops response")
	}
}
