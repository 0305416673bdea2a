package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/yairfalse/kartta/api"
	"github.com/yairfalse/kartta/inventory"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the inventory HTTP API",
	Long: `Start the HTTP API server.

The server collects inventory on demand, persists refresh snapshots
to the configured store, and exposes Prometheus metrics on /metrics.`,
	Example: `  kartta serve                        # Serve on the configured address
  kartta serve --addr :9000           # Override the listen address
  kartta serve -c kartta.yaml --debug # With config file and debug logs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExporter))
	otel.SetMeterProvider(provider)

	orchestrator, err := buildOrchestrator(cfg, provider.Meter("kartta"))
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	refresher := inventory.NewRefresher(orchestrator, store)
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(cfg, orchestrator, refresher, store).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var group run.Group
	group.Add(func() error {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting HTTP server")
		return server.ListenAndServe()
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
	})
	group.Add(run.SignalHandler(cmd.Context(), os.Interrupt, syscall.SIGTERM))

	err = group.Run()
	if _, ok := err.(run.SignalError); ok {
		log.Info().Msg("shutting down")
		return nil
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
