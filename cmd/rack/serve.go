package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/rack/internal/api"
	"github.com/jbweber/homelab/rack/internal/commissioning"
	"github.com/jbweber/homelab/rack/internal/config"
	"github.com/jbweber/homelab/rack/internal/migrations"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		port, _ := cmd.Flags().GetString("port")
		if port != "" {
			cfg.Port = port
		}
		return serve(cfg)
	},
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "listen port (overrides config)")
}

func serve(cfg *config.Config) error {
	logger := slog.Default()

	ds, err := cfg.InitializeDatabase()
	if err != nil {
		return err
	}
	defer ds.Close()

	ingester := commissioning.NewIngester(ds, nil, commissioning.Options{
		MinBlockDeviceSize: cfg.Storage.MinBlockDeviceSize,
		Logger:             logger,
	})

	var dhcp api.HostMapper
	if cfg.DHCP.Server != "" {
		dhcp = newSession(cfg)
	} else {
		logger.Warn("no DHCP server configured, DHCP endpoints are disabled")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewAPI(ds, ingester, dhcp, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server started", "addr", server.Addr)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}

func schemaVersion(db *sql.DB) (int64, error) {
	return migrations.NewMigrator(db).GetCurrentVersion()
}
