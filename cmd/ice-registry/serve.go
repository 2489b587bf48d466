package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glestaris/ice/pkg/api"
	"github.com/glestaris/ice/pkg/config"
	"github.com/glestaris/ice/pkg/events"
	"github.com/glestaris/ice/pkg/log"
	"github.com/glestaris/ice/pkg/metrics"
	"github.com/glestaris/ice/pkg/storage"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the registry server",
	Long: `Run the registry HTTP server.

Settings come from registry.yaml; the flags below override it.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "Listen address (default from config, 0.0.0.0)")
	serveCmd.Flags().Int("port", 0, "Listen port (default from config, 5000)")
	serveCmd.Flags().String("backend", "", "Storage backend: bolt or badger")
	serveCmd.Flags().String("data-dir", "", "Data directory for the store")
	serveCmd.Flags().String("public-ip-policy", "", "public_ip_addr policy: fallback or observed")
	serveCmd.Flags().Bool("trust-forwarded-for", false, "Take the caller address from X-Forwarded-For")
	serveCmd.Flags().String("nats-url", "", "Forward lifecycle events to this NATS server")
	serveCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	serveCmd.Flags().Bool("log-json", false, "Log as JSON")
}

// loadServerConfig reads registry.yaml and applies the serve flags on top
func loadServerConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, os.Getenv)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("host"); v != "" {
		cfg.Server.Host = v
	}
	if v, _ := flags.GetInt("port"); v != 0 {
		cfg.Server.Port = v
	}
	if v, _ := flags.GetString("backend"); v != "" {
		cfg.Server.Storage.Backend = v
	}
	if v, _ := flags.GetString("data-dir"); v != "" {
		cfg.Server.Storage.DataDir = v
	}
	if v, _ := flags.GetString("public-ip-policy"); v != "" {
		cfg.Server.PublicIPPolicy = v
	}
	if flags.Changed("trust-forwarded-for") {
		cfg.Server.TrustForwardedFor, _ = flags.GetBool("trust-forwarded-for")
	}
	if v, _ := flags.GetString("nats-url"); v != "" {
		cfg.Server.NATS.URL = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.Server.Log.Level = v
	}
	if flags.Changed("log-json") {
		cfg.Server.Log.JSON, _ = flags.GetBool("log-json")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServerConfig(cmd)
	if err != nil {
		return err
	}

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.Server.Log.Level),
		JSONOutput: cfg.Server.Log.JSON,
	})
	logger := log.WithComponent("registry")
	metrics.SetVersion(Version)

	if err := os.MkdirAll(cfg.Server.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := storage.Open(cfg.Server.Storage.Backend, cfg.Server.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()
	metrics.RegisterComponent(metrics.ComponentStorage, true, "")
	logger.Info().
		Str("backend", cfg.Server.Storage.Backend).
		Str("data_dir", cfg.Server.Storage.DataDir).
		Msg("Store opened")

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Server.NATS.URL != "" {
		publisher, err := events.ConnectNATS(cfg.Server.NATS.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer publisher.Close()
		metrics.RegisterComponent(metrics.ComponentNATS, true, "")

		go events.NewForwarder(broker, publisher, cfg.Server.NATS.Subject).Run(ctx)
		logger.Info().
			Str("url", cfg.Server.NATS.URL).
			Str("subject", cfg.Server.NATS.Subject).
			Msg("Forwarding events to NATS")
	}

	collector := metrics.NewCollector(store)
	collector.Start()
	defer collector.Stop()

	server := api.NewServer(store, broker, api.Config{
		TrustForwardedFor: cfg.Server.TrustForwardedFor,
		PublicIPPolicy:    cfg.Server.PublicIPPolicy,
		Metrics:           cfg.Server.MetricsEnabled(),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Address())
	}()

	// Wait for interrupt signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown: %w", err)
	}

	logger.Info().Msg("Shutdown complete")
	return nil
}
