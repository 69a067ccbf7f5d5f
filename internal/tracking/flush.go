package tracking

import (
	"context"
	"sort"

	"github.com/goodtune/webtime/internal/metrics"
	"github.com/goodtune/webtime/internal/storage"
)

// Sender delivers one date's worth of per-app usage log records to the
// remote collector. Any non-confirmed outcome is an error.
type Sender interface {
	SendDate(ctx context.Context, records []storage.UsageLogEntry) error
}

// flush transmits unsent portions of the daily ledger to the collector.
//
// Candidates are every ledger date that is today or not yet acknowledged;
// today is always a candidate because it keeps accumulating. A fingerprint
// over the candidate subset detects content identical to the previous
// transmission and skips the network entirely. Dates are sent oldest first;
// the first failure stops the pass (ordered, at-least-once delivery) and the
// failed dates remain candidates for the next cycle. Only fully-elapsed days
// enter the sent set, and only after confirmed success.
func (t *Tracker) flush(ctx context.Context) {
	if t.sender == nil {
		metrics.FlushCycles.WithLabelValues("skipped_unconfigured").Inc()
		t.logger.Debug().Msg("No collector endpoint configured, skipping flush")
		return
	}

	ledger, err := t.loadLedger(ctx)
	if err != nil {
		metrics.FlushCycles.WithLabelValues("failed").Inc()
		t.logger.Error().Err(err).Msg("Failed to load ledger for flush")
		return
	}

	sentDates, err := t.loadSentDates(ctx)
	if err != nil {
		metrics.FlushCycles.WithLabelValues("failed").Inc()
		t.logger.Error().Err(err).Msg("Failed to load sent dates for flush")
		return
	}

	lastFingerprint, err := t.loadFingerprint(ctx)
	if err != nil {
		metrics.FlushCycles.WithLabelValues("failed").Inc()
		t.logger.Error().Err(err).Msg("Failed to load last-sent fingerprint")
		return
	}

	today := LocalDate(t.clock.Now())

	sent := make(map[string]bool, len(sentDates))
	for _, date := range sentDates {
		sent[date] = true
	}

	var candidates []string
	for date := range ledger {
		if date == today || !sent[date] {
			candidates = append(candidates, date)
		}
	}
	sort.Strings(candidates)

	if len(candidates) == 0 {
		metrics.FlushCycles.WithLabelValues("skipped_empty").Inc()
		return
	}

	currentFingerprint := Fingerprint(Restrict(ledger, candidates))
	if currentFingerprint == lastFingerprint {
		metrics.FlushCycles.WithLabelValues("skipped_unchanged").Inc()
		t.logger.Debug().Msg("Ledger unchanged since last send, skipping flush")
		return
	}

	outcome := "sent"
	for _, date := range candidates {
		records := buildLogEntries(t.deviceID, date, ledger[date])

		if err := t.sender.SendDate(ctx, records); err != nil {
			// Likely a transient network problem; later dates would hit the
			// same wall, so stop here and retry the whole tail next cycle.
			t.logger.Warn().Err(err).Str("date", date).Msg("Failed to send usage logs, will retry next cycle")
			outcome = "partial"
			break
		}

		metrics.DatesSent.Inc()
		if date < today && !sent[date] {
			sentDates = append(sentDates, date)
			sent[date] = true
		}

		t.logger.Info().
			Str("date", date).
			Int("apps", len(records)).
			Msg("Sent usage logs")
	}

	if err := t.state.SaveSentDates(ctx, sentDates); err != nil {
		t.logger.Error().Err(err).Msg("Failed to persist sent dates")
	}

	// The stored fingerprint covers whatever this pass attempted, failed
	// dates included, restricted to candidate dates still present in the
	// ledger. The next flush skips only if the exact same subset and values
	// recur.
	attempted := Fingerprint(Restrict(ledger, candidates))
	if err := t.state.SaveFingerprint(ctx, attempted); err != nil {
		t.logger.Error().Err(err).Msg("Failed to persist fingerprint")
	}

	metrics.FlushCycles.WithLabelValues(outcome).Inc()
}

// buildLogEntries renders one date's cells as wire records, in stable app
// order.
func buildLogEntries(deviceID, date string, apps map[string]storage.UsageCell) []storage.UsageLogEntry {
	names := make([]string, 0, len(apps))
	for app := range apps {
		names = append(names, app)
	}
	sort.Strings(names)

	records := make([]storage.UsageLogEntry, 0, len(names))
	for _, app := range names {
		cell := apps[app]
		records = append(records, storage.UsageLogEntry{
			DeviceID:     deviceID,
			Date:         date,
			AppName:      app,
			TotalSeconds: cell.TotalSeconds,
			LastUpdated:  cell.LastUpdated,
		})
	}
	return records
}
