package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mesh-state/mesh-state-server/internal/api"
	"github.com/mesh-state/mesh-state-server/internal/config"
	"github.com/mesh-state/mesh-state-server/internal/server"
	"github.com/mesh-state/mesh-state-server/internal/session"
	meshsync "github.com/mesh-state/mesh-state-server/internal/sync"
)

func main() {
	// Command line flags
	var configFile string
	flag.StringVar(&configFile, "config", "config/state-server.yml", "Configuration file path")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Session registry holds all per-device stores
	registry := session.NewRegistry()

	// Optional: remote sync backend
	var syncer *meshsync.Adapter
	if cfg.Sync.Enabled && cfg.Database.DSN != "" {
		store, err := meshsync.NewPostgresStore(cfg.Database.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to sync database")
		}
		defer store.Close()

		syncer = meshsync.NewAdapter(store, cfg.Sync.Timeout)
		log.Info().Msg("Remote sync enabled")
	} else {
		log.Info().Msg("Remote sync disabled")
	}

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start REST API server
	apiServer := api.NewRESTServer(cfg, registry)

	// WaitGroup for services
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		if err := apiServer.ListenAndServe(addr); err != nil {
			log.Error().Err(err).Msg("REST API server stopped")
		}
	}()

	// Event source over NATS
	if cfg.NATS.URL != "" {
		log.Info().Str("url", cfg.NATS.URL).Msg("Connecting to NATS...")

		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name("mesh-state-server"),
			nats.UserInfo(cfg.NATS.Username, cfg.NATS.Password),
			nats.ReconnectWait(cfg.NATS.ReconnectInterval),
			nats.MaxReconnects(cfg.NATS.MaxReconnects),
			nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
				log.Warn().Err(err).Msg("Disconnected from NATS")
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info().Msg("Reconnected to NATS")
			}),
			nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
				log.Error().
					Err(err).
					Str("subject", sub.Subject).
					Msg("NATS error")
			}),
		)

		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nc.Close()
		log.Info().Msg("Connected to NATS")

		source := server.NewEventSource(nc, registry, syncer)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := source.Start(ctx); err != nil && err != context.Canceled {
				log.Error().Err(err).Msg("Event source stopped")
			}
		}()
	} else {
		log.Warn().Msg("NATS not configured, no events will be processed")
	}

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	// Cancel context
	cancel()

	// Shutdown API server
	if err := apiServer.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown API server gracefully")
	}

	// Wait for all services
	wg.Wait()

	// Let already-submitted sync calls finish
	if syncer != nil {
		syncer.Wait()
	}

	log.Info().Msg("Mesh state server stopped")
}
