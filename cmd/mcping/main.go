// main is the entry point of the mcping application.
// It queries a single server from the command line, runs database maintenance,
// serves a fake status server, or starts the HTTP status service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcping/internal/config"
	"github.com/woozymasta/mcping/internal/fake"
	"github.com/woozymasta/mcping/internal/game"
	"github.com/woozymasta/mcping/internal/geoip"
	"github.com/woozymasta/mcping/internal/logger"
	"github.com/woozymasta/mcping/internal/maintenance"
	"github.com/woozymasta/mcping/internal/models"
	"github.com/woozymasta/mcping/internal/server"
	"github.com/woozymasta/mcping/internal/storage"
)

func main() {
	cfg := config.Parse()

	closeLog := logger.Setup(cfg.Logger)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cfg.Mode() {
	case config.ModeFake:
		err = runFake(ctx, cfg)
	case config.ModeQuery:
		err = runQuery(ctx, cfg, os.Stdout)
	case config.ModeMaintenance:
		err = runMaintenance(ctx, cfg)
	default:
		err = runService(ctx, cfg)
	}

	if err != nil {
		log.Error().Err(err).Msg("Exiting with error")
		closeLog()
		os.Exit(1)
	}
}

// runQuery queries the positional address once and prints the report.
func runQuery(ctx context.Context, cfg *config.Config, out io.Writer) error {
	geo := openGeoIP(cfg.GeoIP.Path)
	defer func() { _ = geo.Close() }()

	report, err := game.NewQuerier(cfg.SLP, geo).Query(ctx, cfg.Args.Address)
	if err != nil {
		return err
	}

	if cfg.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	return printReport(out, report)
}

func printReport(out io.Writer, r *models.Report) error {
	players := "unavailable"
	if len(r.PlayerNames) > 0 {
		players = strings.Join(r.PlayerNames, ", ")
	}

	location := r.IP
	if r.CountryCode != "" {
		location += " (" + r.CountryCode + ")"
	}

	_, err := fmt.Fprintf(out, `address:  %s
target:   %s:%d
ip:       %s
latency:  %dms
version:  %s (%d)
online:   %d/%d
players:  %s
motd:     %s
`, r.Address, r.Host, r.Port, location, r.LatencyMS, r.VersionName, r.Protocol,
		r.Online, r.MaxPlayers, players, r.MotdHTML)

	return err
}

func runMaintenance(ctx context.Context, cfg *config.Config) error {
	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	geo := openGeoIP(cfg.GeoIP.Path)
	defer func() { _ = geo.Close() }()

	if !maintenance.Run(ctx, cfg, store, game.NewQuerier(cfg.SLP, geo)) {
		return errors.New("no maintenance task selected")
	}
	return nil
}

func runFake(ctx context.Context, cfg *config.Config) error {
	srv := &fake.Server{Delay: cfg.Fake.Delay}
	if err := srv.Listen(cfg.Fake.Listen); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()
	log.Info().Str("address", srv.Addr().String()).Msg("Fake status server listening")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	log.Info().Msg("Shutting down fake server...")
	return srv.Close()
}

func runService(ctx context.Context, cfg *config.Config) error {
	log.Info().Msg("Starting mcping service...")

	var geo *geoip.Provider
	if cfg.GeoIP.Path != "" {
		log.Info().Msg("Checking GeoIP database...")
		if err := geoip.EnsureDB(ctx, cfg.GeoIP.Path, cfg.GeoIP.URL, cfg.GeoIP.Interval); err != nil {
			log.Error().Err(err).Msg("Failed to download GeoIP database")
		}
		geo = openGeoIP(cfg.GeoIP.Path)
	}
	defer func() {
		if err := geo.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing GeoIP provider")
		}
	}()

	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	srvHandler := server.New(store, game.NewQuerier(cfg.SLP, geo), cfg)
	srvHandler.StartWorkers()

	// longest a status request can run: SRV lookup and dial plus the session
	requestTimeout := cfg.SLP.Timeout + 5*time.Second

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srvHandler.Run(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      requestTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		srvHandler.StopWorkers()
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// drain queued history before the database closes
	srvHandler.StopWorkers()

	log.Info().Msg("Server exited")
	return nil
}

// openGeoIP opens the country database at path; a missing or broken file
// disables country lookup.
func openGeoIP(path string) *geoip.Provider {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		log.Debug().Err(err).Str("path", path).Msg("GeoIP database unavailable, country detection disabled")
		return nil
	}

	geo, err := geoip.Open(path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		return nil
	}

	return geo
}
