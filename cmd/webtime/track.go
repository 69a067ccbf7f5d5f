package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/goodtune/webtime/internal/bridge"
	"github.com/goodtune/webtime/internal/config"
	"github.com/goodtune/webtime/internal/metrics"
	"github.com/goodtune/webtime/internal/tracking"
	"github.com/goodtune/webtime/internal/transport"
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Run the usage tracking daemon",
	Long: `Runs the tracking daemon: a localhost bridge the browser extension
posts focus events to, the session tracker and daily usage ledger, and a
periodic flush to the remote collector.`,
	RunE: runTrack,
}

func init() {
	rootCmd.AddCommand(trackCmd)
}

func runTrack(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting webtime tracker")

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	// No endpoint means flushing stays off until one is configured; the
	// ledger keeps accumulating locally either way.
	var sender tracking.Sender
	if cfg.Tracker.Endpoint != "" {
		sender = transport.NewClient(
			cfg.Tracker.Endpoint,
			parseDuration(cfg.Tracker.RequestTimeout, 10*time.Second),
			logger,
		)
	} else {
		logger.Warn().Msg("No collector endpoint configured, usage logs will not be flushed")
	}

	tracker := tracking.New(
		store.State(),
		sender,
		tracking.RealClock{},
		tracking.Config{
			FlushPeriod:        parseDuration(cfg.Tracker.FlushPeriod, tracking.DefaultFlushPeriod),
			MinSessionDuration: parseDuration(cfg.Tracker.MinSessionDuration, tracking.DefaultMinSessionDuration),
			RetentionDays:      cfg.Tracker.RetentionDays,
		},
		logger,
	)

	if err := tracker.Start(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start tracker")
	}

	logger.Info().Str("device_id", tracker.DeviceID()).Msg("Tracker started")

	bridgeServer := bridge.NewServer(cfg.Tracker.BridgeAddress, tracker, logger)
	if err := bridgeServer.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start bridge server")
	}

	metricsServer := metrics.NewServer(cfg.Tracker.MetricsAddress, logger)
	if err := metricsServer.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start metrics server")
	}

	logger.Info().
		Str("bridge", cfg.Tracker.BridgeAddress).
		Str("metrics", cfg.Tracker.MetricsAddress).
		Msg("webtime tracker startup complete")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	if err := bridgeServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping bridge server")
	}

	// Folds the active session into the ledger and runs a final flush.
	tracker.Stop()

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping metrics server")
	}

	logger.Info().Msg("webtime tracker stopped")
	return nil
}
