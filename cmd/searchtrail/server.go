package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/searchtrail/searchtrail/internal/duckstore"
	"github.com/searchtrail/searchtrail/internal/export"
	"github.com/searchtrail/searchtrail/internal/httpserver"
	"github.com/searchtrail/searchtrail/internal/logstore"
	"github.com/searchtrail/searchtrail/internal/model"
	"github.com/searchtrail/searchtrail/internal/searchlog"
)

// runServer starts the search log service and blocks until shutdown.
func runServer(cfg appConfig) error {
	log.DefaultLogger = log.Logger{
		Level:      log.InfoLevel,
		TimeFormat: "15:04:05",
		Writer:     &log.ConsoleWriter{Writer: os.Stderr},
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
	}
	defer store.Close()

	exporter, err := export.New(export.Config{
		Dir:      cfg.ExportDir,
		BaseURL:  cfg.ExportBaseURL,
		KeepLast: cfg.ExportKeepLast,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize exporter: %w", err)
	}

	svc := searchlog.New(store, exporter)

	if cfg.AdminToken == "" {
		log.Warn().Msg("admin-token is not set, clear and export actions are disabled")
	}

	apiServer := httpserver.NewServer(cfg.APIAddr, svc, cfg.AdminToken)
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	log.Info().
		Str("store", cfg.Store).
		Str("addr", cfg.APIAddr).
		Str("config", cfg.ConfigPath).
		Msg("searchtrail started")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		return apiServer.Stop()
	})
	return g.Wait()
}

// openStore selects the configured record-source backend. Both sides
// implement the same capability contract, so everything downstream of the
// store is shared.
func openStore(cfg appConfig) (model.EventStore, error) {
	switch cfg.Store {
	case storeBackendDuckDB:
		return duckstore.Open(cfg.DBPath, cfg.QueryTimeout)
	default:
		return logstore.Open(cfg.LogPath)
	}
}
