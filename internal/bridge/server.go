package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/goodtune/webtime/internal/tracking"
)

// Server is the localhost HTTP bridge between the browser extension and the
// tracking core. The extension posts window focus changes here; status
// displays query current usage. The bridge only translates HTTP into core
// events, all tracking decisions stay in the tracker's event loop.
type Server struct {
	tracker *tracking.Tracker
	server  *http.Server
	logger  zerolog.Logger
}

// focusRequest is the payload of a focus-change notification. A null window
// means the browser went inactive.
type focusRequest struct {
	Window *tracking.Window `json:"window"`
	Tabs   []tracking.Tab   `json:"tabs"`
}

// NewServer creates a bridge server.
func NewServer(addr string, tracker *tracking.Tracker, logger zerolog.Logger) *Server {
	s := &Server{
		tracker: tracker,
		logger:  logger.With().Str("component", "bridge").Logger(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/events/focus", s.handleFocus).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/status", s.handleStatus).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the bridge server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting bridge server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Bridge server error")
		}
	}()
	return nil
}

// Stop stops the bridge server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping bridge server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	var req focusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_json"})
		return
	}

	s.tracker.HandleFocusChange(req.Window, req.Tabs)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.tracker.Status(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Status query failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "status_unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
