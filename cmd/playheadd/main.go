// Package main provides the playhead server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/aveline/playhead/internal/api/ws"
	"github.com/aveline/playhead/internal/app/engine"
	"github.com/aveline/playhead/internal/app/mediabus"
	"github.com/aveline/playhead/internal/app/telemetry"
	"github.com/aveline/playhead/internal/domain/track"
	"github.com/aveline/playhead/internal/infra/catalog"
	"github.com/aveline/playhead/internal/infra/config"
	"github.com/aveline/playhead/internal/infra/credit"
	"github.com/aveline/playhead/internal/infra/logger"
	"github.com/aveline/playhead/internal/infra/playlog"
)

var (
	app        = kingpin.New("playheadd", "playhead playback engine server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	bridge, playLogger, cat, err := buildCollaborators(cfg)
	if err != nil {
		return err
	}

	hub := ws.NewHub()
	dev := ws.NewRemoteDevice(hub)
	bus := mediabus.New()

	eng := engine.New(dev, bridge, playLogger, bus, engine.Config{
		SeekDebounce:    cfg.Playback.SeekDebounce(),
		LegacyThreshold: cfg.Playback.LegacyThreshold(),
		InitialVolume:   cfg.Playback.InitialVolume,
		FinalizeTimeout: cfg.Playback.FinalizeTimeout(),
	})

	handler := ws.NewServer(eng, cat, dev, hub, bus)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: handler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close the engine first so the open tracking cycle is finalized while
	// the collaborators are still reachable.
	eng.Close()
	handler.Close()
	hub.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")
	return nil
}

// buildCollaborators wires the backend clients. Disabled collaborators get
// no-op implementations so the engine never has to care.
func buildCollaborators(cfg *config.Config) (telemetry.Bridge, telemetry.PlayLogger, ws.Catalog, error) {
	var bridge telemetry.Bridge = telemetry.NopBridge{}
	if c := cfg.Collaborators.Credit; c.Enabled {
		client, err := credit.New(credit.Config{BaseURL: c.BaseURL, Token: c.Token, Timeout: c.Timeout()})
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "failed to create credit client")
		}
		bridge = client
	} else {
		zlog.Info().Msg("Credit collaborator disabled, listened time will not be reported")
	}

	var playLogger telemetry.PlayLogger = telemetry.NopPlayLogger{}
	if c := cfg.Collaborators.Playlog; c.Enabled {
		client, err := playlog.New(playlog.Config{BaseURL: c.BaseURL, Token: c.Token, Timeout: c.Timeout()})
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "failed to create playlog client")
		}
		playLogger = client
	} else {
		zlog.Info().Msg("Playlog collaborator disabled, play counts will not be recorded")
	}

	var cat ws.Catalog = disabledCatalog{}
	if c := cfg.Collaborators.Catalog; c.Enabled {
		client, err := catalog.New(catalog.Config{BaseURL: c.BaseURL, Token: c.Token, Timeout: c.Timeout()})
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "failed to create catalog client")
		}
		cat = client
	} else {
		zlog.Warn().Msg("Catalog collaborator disabled, track commands cannot be resolved")
	}

	return bridge, playLogger, cat, nil
}

// disabledCatalog rejects every lookup.
type disabledCatalog struct{}

func (disabledCatalog) GetTrack(context.Context, string) (track.Track, error) {
	return track.Track{}, errors.New("catalog collaborator is disabled")
}

func (disabledCatalog) GetCollectionTracks(context.Context, string) ([]track.Track, error) {
	return nil, errors.New("catalog collaborator is disabled")
}
