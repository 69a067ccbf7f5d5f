package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Tracker metrics
	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webtime_sessions_started_total",
			Help: "Total tracking sessions started",
		},
	)

	SessionsDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webtime_sessions_discarded_total",
			Help: "Total tracking sessions discarded without counting",
		},
		[]string{"reason"}, // "below_threshold", "stale_checkpoint"
	)

	SecondsAccumulated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webtime_seconds_accumulated_total",
			Help: "Total usage seconds accumulated into the daily ledger",
		},
		[]string{"app"},
	)

	FlushCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webtime_flush_cycles_total",
			Help: "Flush cycles by outcome",
		},
		[]string{"outcome"}, // "sent", "partial", "skipped_unchanged", "skipped_empty", "skipped_unconfigured", "failed"
	)

	DatesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webtime_dates_sent_total",
			Help: "Total per-date transmissions acknowledged by the collector",
		},
	)

	// Collector metrics
	LogsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webtime_collector_logs_received_total",
			Help: "Usage log requests received by the collector",
		},
		[]string{"status"}, // "ok", "invalid", "method_not_allowed"
	)

	LogUpserts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webtime_collector_log_upserts_total",
			Help: "Usage log records written to storage",
		},
	)

	DedupCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webtime_collector_dedup_cache_hits_total",
			Help: "Identical re-deliveries skipped without a storage write",
		},
	)

	LogsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webtime_collector_logs_expired_total",
			Help: "Usage log records removed by TTL cleanup",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsStarted,
		SessionsDiscarded,
		SecondsAccumulated,
		FlushCycles,
		DatesSent,
		LogsReceived,
		LogUpserts,
		DedupCacheHits,
		LogsExpired,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
