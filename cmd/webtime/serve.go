package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/goodtune/webtime/internal/collector"
	"github.com/goodtune/webtime/internal/config"
	"github.com/goodtune/webtime/internal/metrics"
	"github.com/goodtune/webtime/internal/systemd"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the usage log collector",
	Long: `Runs the receiving collector: validates usage log records posted by
tracking daemons and upserts them keyed by (deviceId, date, appName) with a
30-day expiry. Supports systemd socket activation.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting webtime collector")

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	collectorServer, err := collector.NewServer(
		collector.Config{
			ListenAddr:      cfg.Collector.ListenAddress,
			LogTTLDays:      cfg.Collector.LogTTLDays,
			CleanupInterval: parseDuration(cfg.Collector.CleanupInterval, time.Hour),
			DedupCacheSize:  cfg.Collector.DedupCacheSize,
		},
		store.Logs(),
		logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create collector server")
	}

	metricsServer := metrics.NewServer(cfg.Collector.MetricsAddress, logger)

	// Prefer systemd socket-activated listeners when present
	listeners, err := systemd.GetListeners()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get systemd listeners, binding directly")
	} else if listeners.Activated {
		logger.Info().Msg("Using systemd socket activation")
		if listeners.Collector != nil {
			collectorServer.SetListener(listeners.Collector)
		}
		if listeners.Metrics != nil {
			metricsServer.SetListener(listeners.Metrics)
		}
	}

	if err := collectorServer.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start collector server")
	}

	if err := metricsServer.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start metrics server")
	}

	if err := systemd.NotifyReady(); err != nil {
		logger.Debug().Err(err).Msg("sd_notify ready not sent")
	}

	logger.Info().
		Str("listen", cfg.Collector.ListenAddress).
		Str("metrics", cfg.Collector.MetricsAddress).
		Msg("webtime collector startup complete")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	if err := systemd.NotifyStopping(); err != nil {
		logger.Debug().Err(err).Msg("sd_notify stopping not sent")
	}

	if err := collectorServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping collector server")
	}

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping metrics server")
	}

	logger.Info().Msg("webtime collector stopped")
	return nil
}
