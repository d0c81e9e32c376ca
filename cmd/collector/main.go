// Package main provides the entrypoint for the LATAM air quality
// snapshot collector.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/latamaq/latamaq/internal/airquality/waqi"
	"github.com/latamaq/latamaq/internal/cache"
	"github.com/latamaq/latamaq/internal/collector"
	"github.com/latamaq/latamaq/internal/config"
	"github.com/latamaq/latamaq/internal/geo"
	"github.com/latamaq/latamaq/internal/geo/nominatim"
	"github.com/latamaq/latamaq/internal/geo/overpass"
	"github.com/latamaq/latamaq/internal/ops"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "latamaq-collector"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Str("run_id", uuid.NewString()).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting LATAM air quality collector")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Interrupts end the run after the current fetch; rows gathered so
	// far are still written.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open the shared on-disk cache
	var store *cache.Store
	if cfg.Cache.Enabled {
		store, err = cache.Open(cache.NewFilePersister(cfg.Cache.Path), log)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Cache.Path).Msg("failed to open cache")
		}
		log.Info().Str("path", cfg.Cache.Path).Int("entries", store.Len()).Msg("cache ready")
	}

	feed := waqi.NewClient(waqi.ClientConfig{
		Token:   cfg.WAQI.Token,
		BaseURL: cfg.WAQI.BaseURL,
		Timeout: cfg.WAQI.Timeout(),
	})

	var geoService collector.GeoSource
	if cfg.Enrichment.Population || cfg.Enrichment.Industry {
		geoService = geo.NewService(geo.ServiceConfig{
			Places:             overpass.NewClient(overpass.ClientConfig{}),
			Industry:           nominatim.NewClient(nominatim.ClientConfig{}),
			Store:              store,
			Logger:             log,
			PopulationRadiusKm: cfg.Enrichment.PopulationRadiusKm,
			IndustryRadiusKm:   cfg.Enrichment.IndustryRadiusKm,
		})
	}

	col := collector.New(collector.CollectorConfig{
		Config: collector.Config{
			Countries:        cfg.Collector.Countries,
			FetchDelay:       cfg.Collector.FetchDelay(),
			OutputDir:        cfg.Collector.OutputDir,
			FilePrefix:       cfg.Collector.FilePrefix,
			EnrichPopulation: cfg.Enrichment.Population,
			EnrichIndustry:   cfg.Enrichment.Industry,
			PreviewRows:      cfg.Collector.PreviewRows,
		},
		Feed:   feed,
		Geo:    geoService,
		Store:  store,
		Logger: log,
	})

	// Ops server for health checks and run progress
	var opsServer *http.Server
	if cfg.Ops.Enabled {
		opsServer = &http.Server{
			Addr: fmt.Sprintf(":%d", cfg.Ops.Port),
			Handler: ops.NewRouter(ops.RouterConfig{
				Source:  col,
				Logger:  log,
				Version: Version,
			}),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			log.Info().Int("port", cfg.Ops.Port).Msg("ops server listening")
			if serveErr := opsServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				log.Error().Err(serveErr).Msg("ops server error")
			}
		}()
	}

	result, runErr := col.Run(ctx)

	if opsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("ops server forced to shutdown")
		}
		cancel()
	}

	if runErr != nil {
		log.Error().Err(runErr).Msg("snapshot run failed")
		os.Exit(1)
	}

	log.Info().
		Str("output", result.OutputPath).
		Int("rows", result.Rows).
		Int("skipped", result.Skipped).
		Int("countries", result.Countries).
		Dur("duration", result.Duration).
		Msg("collector finished")
}
