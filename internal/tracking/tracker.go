package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/goodtune/webtime/internal/metrics"
	"github.com/goodtune/webtime/internal/storage"
)

const (
	// DefaultFlushPeriod is the interval between periodic flush cycles.
	DefaultFlushPeriod = 60 * time.Second

	// DefaultMinSessionDuration filters out focus-flicker noise.
	DefaultMinSessionDuration = 1 * time.Second

	// DefaultRetentionDays is how many calendar days the ledger retains,
	// current day included.
	DefaultRetentionDays = 4
)

// Config holds tracker configuration
type Config struct {
	FlushPeriod        time.Duration
	MinSessionDuration time.Duration
	RetentionDays      int
}

// Tracker is the tracking core: the session tracker, flush coordinator and
// lifecycle controller behind a single-goroutine event loop. External events
// (focus changes, timer ticks, status queries) are handled strictly one at a
// time, so no locks guard the session state or the ledger; mutations are
// copy-and-replace whole-value writes.
type Tracker struct {
	state  storage.StateStore
	sender Sender
	clock  Clock
	cfg    Config
	logger zerolog.Logger

	deviceID   string
	currentApp string
	startTime  time.Time

	focusCh  chan focusEvent
	statusCh chan statusRequest
	stopCh   chan struct{}
	doneCh   chan struct{}
}

type focusEvent struct {
	win  *Window
	tabs []Tab
}

type statusRequest struct {
	reply chan statusReply
}

type statusReply struct {
	report *StatusReport
	err    error
}

// StatusReport answers a status query from a display surface.
type StatusReport struct {
	CurrentAppName    *string                      `json:"currentAppName"`
	DeviceID          string                       `json:"deviceId"`
	TodayTotalSeconds int64                        `json:"todayTotalSeconds"`
	TodayApps         map[string]storage.UsageCell `json:"todayApps"`
}

// New creates a tracker. A nil sender means no collector endpoint is
// configured; flushing is skipped until one appears.
func New(state storage.StateStore, sender Sender, clock Clock, cfg Config, logger zerolog.Logger) *Tracker {
	if cfg.FlushPeriod == 0 {
		cfg.FlushPeriod = DefaultFlushPeriod
	}
	if cfg.MinSessionDuration == 0 {
		cfg.MinSessionDuration = DefaultMinSessionDuration
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = DefaultRetentionDays
	}

	return &Tracker{
		state:    state,
		sender:   sender,
		clock:    clock,
		cfg:      cfg,
		logger:   logger.With().Str("component", "tracker").Logger(),
		focusCh:  make(chan focusEvent, 16),
		statusCh: make(chan statusRequest),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs startup recovery and begins the event loop.
func (t *Tracker) Start(ctx context.Context) error {
	if err := t.initialize(ctx); err != nil {
		return err
	}
	go t.run()
	return nil
}

// Stop folds the active session into the ledger, runs a final flush and
// stops the event loop.
func (t *Tracker) Stop() {
	close(t.stopCh)
	<-t.doneCh
	t.logger.Info().Msg("Tracker stopped")
}

// DeviceID returns the stable device identifier. Valid after Start.
func (t *Tracker) DeviceID() string {
	return t.deviceID
}

// HandleFocusChange enqueues a window focus change for the event loop.
// A nil window means the browser went inactive.
func (t *Tracker) HandleFocusChange(win *Window, tabs []Tab) {
	select {
	case t.focusCh <- focusEvent{win: win, tabs: tabs}:
	case <-t.doneCh:
	}
}

// Status queries the current tracking state through the event loop.
func (t *Tracker) Status(ctx context.Context) (*StatusReport, error) {
	req := statusRequest{reply: make(chan statusReply, 1)}

	select {
	case t.statusCh <- req:
	case <-t.doneCh:
		return nil, errors.New("tracker stopped")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case rep := <-req.reply:
		return rep.report, rep.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// initialize performs startup recovery: device identity, stale-session
// discard, retention pruning and an initial flush covering any backlog.
func (t *Tracker) initialize(ctx context.Context) error {
	id, err := t.state.LoadDeviceID(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		id = uuid.NewString()
		if err := t.state.SaveDeviceID(ctx, id); err != nil {
			return fmt.Errorf("persist device id: %w", err)
		}
		t.logger.Info().Str("device_id", id).Msg("Generated new device ID")
	case err != nil:
		return fmt.Errorf("load device id: %w", err)
	}
	t.deviceID = id

	// A checkpoint left behind by a previous run means the process stopped
	// mid-session. The span the process was down is unmeasurable and must
	// not be attributed to any app, so the session is discarded, never
	// resumed.
	prev, err := t.state.LoadSession(ctx)
	switch {
	case err == nil && prev != nil:
		metrics.SessionsDiscarded.WithLabelValues("stale_checkpoint").Inc()
		t.logger.Info().
			Str("app", prev.AppName).
			Time("started_at", prev.StartTime).
			Msg("Discarding session checkpoint from previous run")
		if err := t.state.ClearSession(ctx); err != nil {
			return fmt.Errorf("clear stale session: %w", err)
		}
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("load session checkpoint: %w", err)
	}

	now := t.clock.Now()

	ledger, err := t.loadLedger(ctx)
	if err != nil {
		return err
	}
	if err := t.state.SaveLedger(ctx, Prune(ledger, t.cfg.RetentionDays, now)); err != nil {
		return fmt.Errorf("persist pruned ledger: %w", err)
	}

	sentDates, err := t.loadSentDates(ctx)
	if err != nil {
		return err
	}
	if err := t.state.SaveSentDates(ctx, PruneSentDates(sentDates, t.cfg.RetentionDays, now)); err != nil {
		return fmt.Errorf("persist pruned sent dates: %w", err)
	}

	t.flush(ctx)

	t.logger.Info().Str("device_id", t.deviceID).Msg("Tracker initialized")
	return nil
}

func (t *Tracker) run() {
	defer close(t.doneCh)

	ticker := time.NewTicker(t.cfg.FlushPeriod)
	defer ticker.Stop()

	ctx := context.Background()

	for {
		select {
		case ev := <-t.focusCh:
			t.handleFocus(ctx, ev)
		case req := <-t.statusCh:
			report, err := t.buildStatus(ctx)
			req.reply <- statusReply{report: report, err: err}
		case <-ticker.C:
			t.handleTick(ctx)
		case <-t.stopCh:
			if err := t.stopSession(ctx); err != nil {
				t.logger.Error().Err(err).Msg("Failed to stop session on shutdown")
			}
			t.flush(ctx)
			return
		}
	}
}

func (t *Tracker) handleFocus(ctx context.Context, ev focusEvent) {
	if err := t.stopSession(ctx); err != nil {
		t.logger.Error().Err(err).Msg("Failed to stop session on focus change")
	}

	// Browser went inactive: nothing to measure, push what we have.
	if ev.win == nil {
		t.flush(ctx)
		return
	}

	appName := IdentifyApp(ev.win, ev.tabs)
	if appName == "" {
		t.logger.Debug().Msg("Window has no identifiable app")
		return
	}

	if err := t.startSession(ctx, appName); err != nil {
		t.logger.Error().Err(err).Str("app", appName).Msg("Failed to start session")
	}
}

// handleTick briefly pauses an active session around the flush so the
// maximum un-persisted in-memory duration is bounded by one period, then
// resumes it with a fresh start time.
func (t *Tracker) handleTick(ctx context.Context) {
	wasTracking := t.currentApp

	if wasTracking != "" {
		if err := t.stopSession(ctx); err != nil {
			t.logger.Error().Err(err).Msg("Failed to stop session on flush tick")
		}
	}

	t.flush(ctx)

	if wasTracking != "" {
		if err := t.startSession(ctx, wasTracking); err != nil {
			t.logger.Error().Err(err).Str("app", wasTracking).Msg("Failed to resume session after flush")
		}
	}
}

func (t *Tracker) buildStatus(ctx context.Context) (*StatusReport, error) {
	ledger, err := t.loadLedger(ctx)
	if err != nil {
		return nil, err
	}

	today := LocalDate(t.clock.Now())
	todayApps := ledger[today]
	if todayApps == nil {
		todayApps = map[string]storage.UsageCell{}
	}

	var total int64
	for _, cell := range todayApps {
		total += cell.TotalSeconds
	}

	report := &StatusReport{
		DeviceID:          t.deviceID,
		TodayTotalSeconds: total,
		TodayApps:         todayApps,
	}
	if t.currentApp != "" {
		app := t.currentApp
		report.CurrentAppName = &app
	}
	return report, nil
}

func (t *Tracker) loadLedger(ctx context.Context) (storage.DailyLedger, error) {
	ledger, err := t.state.LoadLedger(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.DailyLedger{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return ledger, nil
}

func (t *Tracker) loadSentDates(ctx context.Context) ([]string, error) {
	dates, err := t.state.LoadSentDates(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load sent dates: %w", err)
	}
	return dates, nil
}

func (t *Tracker) loadFingerprint(ctx context.Context) (string, error) {
	fingerprint, err := t.state.LoadFingerprint(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load fingerprint: %w", err)
	}
	return fingerprint, nil
}
