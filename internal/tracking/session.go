package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/webtime/internal/metrics"
	"github.com/goodtune/webtime/internal/storage"
)

// startSession begins measuring appName. The session checkpoint is persisted
// before the in-memory state changes so an abrupt restart can detect the
// abandoned session. At most one session is ever active; callers must
// stopSession first when switching apps.
func (t *Tracker) startSession(ctx context.Context, appName string) error {
	if t.currentApp != "" {
		return fmt.Errorf("session already active for %s", t.currentApp)
	}

	now := t.clock.Now()
	checkpoint := storage.SessionCheckpoint{AppName: appName, StartTime: now}
	if err := t.state.SaveSession(ctx, checkpoint); err != nil {
		return fmt.Errorf("checkpoint session: %w", err)
	}

	t.currentApp = appName
	t.startTime = now

	metrics.SessionsStarted.Inc()
	t.logger.Debug().Str("app", appName).Msg("Started tracking session")
	return nil
}

// stopSession folds the elapsed time of the active session into the daily
// ledger and clears the checkpoint. A session shorter than the minimum
// duration is focus-flicker noise and is discarded. A session that straddled
// local midnight is split across the two dates; a sub-threshold sliver on
// one side is dropped, not carried to the other.
func (t *Tracker) stopSession(ctx context.Context) error {
	if t.currentApp == "" {
		return nil
	}

	appName := t.currentApp
	start := t.startTime
	now := t.clock.Now()

	t.currentApp = ""
	t.startTime = time.Time{}

	elapsed := int64(now.Sub(start).Seconds())
	minSeconds := int64(t.cfg.MinSessionDuration.Seconds())

	if elapsed < minSeconds {
		metrics.SessionsDiscarded.WithLabelValues("below_threshold").Inc()
		t.logger.Debug().
			Str("app", appName).
			Int64("elapsed_seconds", elapsed).
			Msg("Session below minimum duration, not counting")
		return t.state.ClearSession(ctx)
	}

	ledger, err := t.loadLedger(ctx)
	if err != nil {
		return err
	}

	startDate := LocalDate(start)
	endDate := LocalDate(now)

	if startDate == endDate {
		ledger = Accumulate(ledger, startDate, appName, elapsed, now)
		metrics.SecondsAccumulated.WithLabelValues(appName).Add(float64(elapsed))
	} else {
		// Session straddled local midnight. A normal session is far shorter
		// than 24h, so only a single boundary needs handling.
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		beforeMidnight := int64(midnight.Sub(start).Seconds())
		afterMidnight := elapsed - beforeMidnight

		if beforeMidnight >= minSeconds {
			ledger = Accumulate(ledger, startDate, appName, beforeMidnight, now)
			metrics.SecondsAccumulated.WithLabelValues(appName).Add(float64(beforeMidnight))
		}
		if afterMidnight >= minSeconds {
			ledger = Accumulate(ledger, endDate, appName, afterMidnight, now)
			metrics.SecondsAccumulated.WithLabelValues(appName).Add(float64(afterMidnight))
		}
	}

	if err := t.state.SaveLedger(ctx, ledger); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}

	t.logger.Info().
		Str("app", appName).
		Int64("elapsed_seconds", elapsed).
		Msg("Stopped tracking session")

	// The cleared checkpoint must be durable before this handler yields.
	return t.state.ClearSession(ctx)
}
