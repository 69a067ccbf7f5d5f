package tracking

import (
	"time"

	"github.com/goodtune/webtime/internal/storage"
)

// LocalDate formats an instant as a local calendar date string.
func LocalDate(t time.Time) string {
	return t.Format(storage.DateFormat)
}

// Accumulate returns a new ledger with seconds added to the (date, appName)
// cell, creating it if absent. The input ledger is never mutated: the top
// map and the touched date map are copied before the write.
func Accumulate(ledger storage.DailyLedger, date, appName string, seconds int64, now time.Time) storage.DailyLedger {
	updated := make(storage.DailyLedger, len(ledger)+1)
	for d, apps := range ledger {
		updated[d] = apps
	}

	apps := make(map[string]storage.UsageCell, len(updated[date])+1)
	for app, cell := range updated[date] {
		apps[app] = cell
	}

	var total int64
	if existing, ok := apps[appName]; ok {
		total = existing.TotalSeconds
	}

	apps[appName] = storage.UsageCell{
		TotalSeconds: total + seconds,
		LastUpdated:  now.UTC().Format(time.RFC3339),
	}
	updated[date] = apps

	return updated
}

// Prune returns a new ledger containing only the most recent retentionDays
// calendar days, counting the day of referenceNow as the last one.
func Prune(ledger storage.DailyLedger, retentionDays int, referenceNow time.Time) storage.DailyLedger {
	cutoff := cutoffDate(retentionDays, referenceNow)

	pruned := make(storage.DailyLedger, len(ledger))
	for date, apps := range ledger {
		if date >= cutoff {
			pruned[date] = apps
		}
	}
	return pruned
}

// PruneSentDates drops sent dates older than the retention window, using the
// same cutoff as Prune so the ledger and the sent set stay consistent.
func PruneSentDates(sentDates []string, retentionDays int, referenceNow time.Time) []string {
	cutoff := cutoffDate(retentionDays, referenceNow)

	kept := make([]string, 0, len(sentDates))
	for _, date := range sentDates {
		if date >= cutoff {
			kept = append(kept, date)
		}
	}
	return kept
}

// Restrict returns the subset of the ledger covering only the given dates.
// Dates absent from the ledger are ignored.
func Restrict(ledger storage.DailyLedger, dates []string) storage.DailyLedger {
	subset := make(storage.DailyLedger, len(dates))
	for _, date := range dates {
		if apps, ok := ledger[date]; ok {
			subset[date] = apps
		}
	}
	return subset
}

func cutoffDate(retentionDays int, referenceNow time.Time) string {
	return LocalDate(referenceNow.AddDate(0, 0, -(retentionDays - 1)))
}
