package collector

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/goodtune/webtime/internal/metrics"
	"github.com/goodtune/webtime/internal/storage"
)

// Config holds the collector server configuration.
type Config struct {
	ListenAddr      string
	LogTTLDays      int
	CleanupInterval time.Duration
	DedupCacheSize  int
}

// dedupEntry remembers the last stored content for a record key. An
// identical re-delivery is acknowledged without touching storage; the
// upsert stays idempotent either way.
type dedupEntry struct {
	totalSeconds int64
	lastUpdated  string
}

// Server is the receiving collector: it validates usage log records posted
// by tracking daemons and upserts them keyed by (deviceId, date, appName).
type Server struct {
	config   Config
	store    storage.LogStore
	dedup    *lru.Cache[string, dedupEntry]
	server   *http.Server
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
	logger   zerolog.Logger
	stopCh   chan struct{}
}

// NewServer creates a collector server.
func NewServer(cfg Config, store storage.LogStore, logger zerolog.Logger) (*Server, error) {
	if cfg.LogTTLDays == 0 {
		cfg.LogTTLDays = 30
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.DedupCacheSize == 0 {
		cfg.DedupCacheSize = 4096
	}

	dedup, err := lru.New[string, dedupEntry](cfg.DedupCacheSize)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config: cfg,
		store:  store,
		dedup:  dedup,
		logger: logger.With().Str("component", "collector").Logger(),
		stopCh: make(chan struct{}),
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/usage-logs", s.handleUsageLog).Methods(http.MethodPost)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	return s, nil
}

// SetListener sets a pre-created listener for systemd socket activation.
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the collector server and the TTL cleanup loop.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting collector server")

	go func() {
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Collector server error")
		}
	}()

	go s.runCleanup()
	return nil
}

// Stop stops the collector server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping collector server")
	close(s.stopCh)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleUsageLog(w http.ResponseWriter, r *http.Request) {
	var entry storage.UsageLogEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		metrics.LogsReceived.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "validation_error",
			"details": []FieldError{{Field: "body", Message: "invalid JSON"}},
		})
		return
	}

	if errs := validateUsageLog(entry); len(errs) > 0 {
		metrics.LogsReceived.WithLabelValues("invalid").Inc()
		s.logger.Debug().
			Str("device_id", entry.DeviceID).
			Interface("details", errs).
			Msg("Rejected invalid usage log")
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "validation_error",
			"details": errs,
		})
		return
	}

	key := entry.DeviceID + "_" + entry.Date + "_" + entry.AppName
	content := dedupEntry{totalSeconds: entry.TotalSeconds, lastUpdated: entry.LastUpdated}

	if cached, ok := s.dedup.Get(key); ok && cached == content {
		metrics.DedupCacheHits.Inc()
		metrics.LogsReceived.WithLabelValues("ok").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	// Both instants parsed successfully during validation.
	date, _ := time.Parse(storage.DateFormat, entry.Date)
	lastUpdated, _ := time.Parse(time.RFC3339, entry.LastUpdated)

	record := storage.UsageLogRecord{
		DeviceID:     entry.DeviceID,
		Date:         entry.Date,
		AppName:      entry.AppName,
		TotalSeconds: entry.TotalSeconds,
		LastUpdated:  lastUpdated,
		ExpireAt:     date.AddDate(0, 0, s.config.LogTTLDays),
		UpdatedAt:    time.Now().UTC(),
	}

	if err := s.store.Upsert(r.Context(), record); err != nil {
		metrics.LogsReceived.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Str("device_id", entry.DeviceID).Msg("Failed to store usage log")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage_error"})
		return
	}

	s.dedup.Add(key, content)
	metrics.LogUpserts.Inc()
	metrics.LogsReceived.WithLabelValues("ok").Inc()

	s.logger.Debug().
		Str("device_id", entry.DeviceID).
		Str("date", entry.Date).
		Str("app", entry.AppName).
		Int64("total_seconds", entry.TotalSeconds).
		Msg("Stored usage log")

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	metrics.LogsReceived.WithLabelValues("method_not_allowed").Inc()
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
}

// runCleanup periodically removes records past their expiry timestamp.
func (s *Server) runCleanup() {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deleted, err := s.store.DeleteExpired(context.Background(), time.Now())
			if err != nil {
				s.logger.Error().Err(err).Msg("Failed to delete expired usage logs")
				continue
			}
			if deleted > 0 {
				metrics.LogsExpired.Add(float64(deleted))
				s.logger.Info().Int("deleted", deleted).Msg("Removed expired usage logs")
			}
		case <-s.stopCh:
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
