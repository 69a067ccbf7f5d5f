package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	State() StateStore
	Logs() LogStore
}

// StateStore persists the tracking daemon's durable state. Every value is
// written whole (copy-and-replace), never patched in place, so a crash
// between two writes leaves each key either old or new but never partial.
type StateStore interface {
	LoadDeviceID(ctx context.Context) (string, error)
	SaveDeviceID(ctx context.Context, id string) error

	LoadSession(ctx context.Context) (*SessionCheckpoint, error)
	SaveSession(ctx context.Context, session SessionCheckpoint) error
	ClearSession(ctx context.Context) error

	LoadLedger(ctx context.Context) (DailyLedger, error)
	SaveLedger(ctx context.Context, ledger DailyLedger) error

	LoadSentDates(ctx context.Context) ([]string, error)
	SaveSentDates(ctx context.Context, dates []string) error

	LoadFingerprint(ctx context.Context) (string, error)
	SaveFingerprint(ctx context.Context, fingerprint string) error
}

// LogStore manages received usage log records on the collector side.
type LogStore interface {
	Upsert(ctx context.Context, record UsageLogRecord) error
	Get(ctx context.Context, deviceID, date, appName string) (*UsageLogRecord, error)
	ListByDate(ctx context.Context, date string) ([]UsageLogRecord, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
