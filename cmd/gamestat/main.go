// main is the entry point of the gamestat service.
// It wires configuration, logging, GeoIP, the schema codec, storage and the HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/gamestat/internal/codec"
	"github.com/woozymasta/gamestat/internal/config"
	"github.com/woozymasta/gamestat/internal/fake"
	"github.com/woozymasta/gamestat/internal/geoip"
	"github.com/woozymasta/gamestat/internal/logger"
	"github.com/woozymasta/gamestat/internal/maintenance"
	"github.com/woozymasta/gamestat/internal/probe"
	"github.com/woozymasta/gamestat/internal/server"
	"github.com/woozymasta/gamestat/internal/storage"
)

func main() {
	cfg := config.Parse()

	if err := logger.Setup(cfg.Logger); err != nil {
		log.Warn().Err(err).Msg("Logger setup incomplete, using defaults")
	}
	log.Info().Str("profile", cfg.Schema.Profile).Msg("Starting gamestat service...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// GeoIP Update
	log.Info().Msg("Checking GeoIP database...")
	if err := geoip.EnsureDB(ctx, cfg.GeoIP.Path, cfg.GeoIP.URL, cfg.GeoIP.Interval); err != nil {
		log.Error().Err(err).Msg("Failed to download GeoIP database")
	}

	geoProvider, err := geoip.Open(cfg.GeoIP.Path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		geoProvider = nil
	} else {
		defer func() {
			if err := geoProvider.Close(); err != nil {
				log.Error().Err(err).Msg("Error closing GeoIP provider")
			}
		}()
	}

	c, err := codec.New(codec.Profile(cfg.Schema.Profile))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize schema codec")
	}

	// Database
	store, err := storage.New(cfg.Storage.Path, string(c.Profile()))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	prober := probe.NewA2S(cfg.Probe)

	// data generation or database maintenance
	if cfg.Storage.GenerateCount > 0 {
		fake.GenerateData(store, c, cfg.Storage.GenerateCount)
		return
	}

	task := &maintenance.Task{Store: store, Codec: c, Prober: prober, Geo: geoProvider}
	if task.Run(cfg.Storage) {
		return
	}

	// Init server
	srvHandler := server.New(store, c, prober, geoProvider, cfg)

	// Background queue
	srvHandler.StartWorkers()

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srvHandler.Run(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful Shutdown
	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop workers (wait queue done)
	srvHandler.StopWorkers()

	log.Info().Msg("Server exited")
}
