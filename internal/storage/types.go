package storage

import "time"

// DateFormat is the calendar date layout used throughout the ledger and the
// wire protocol.
const DateFormat = "2006-01-02"

// UsageCell is one (date, app) accumulation cell of the daily ledger.
// TotalSeconds only ever grows until the cell is pruned; LastUpdated is the
// instant of the most recent accumulation, in RFC 3339.
type UsageCell struct {
	TotalSeconds int64  `json:"totalSeconds"`
	LastUpdated  string `json:"lastUpdated"`
}

// DailyLedger maps a local calendar date ("YYYY-MM-DD") to per-app usage
// cells. It is the tracker's durable source of truth and is always persisted
// as a whole snapshot.
type DailyLedger map[string]map[string]UsageCell

// SessionCheckpoint is the durable image of the single active session. A
// checkpoint found at startup belongs to a previous process run and is
// discarded, never resumed.
type SessionCheckpoint struct {
	AppName   string    `json:"app_name"`
	StartTime time.Time `json:"start_time"`
}

// UsageLogEntry is the wire record exchanged between tracker and collector,
// one per (date, app).
type UsageLogEntry struct {
	DeviceID     string `json:"deviceId"`
	Date         string `json:"date"`
	AppName      string `json:"appName"`
	TotalSeconds int64  `json:"totalSeconds"`
	LastUpdated  string `json:"lastUpdated"`
}

// UsageLogRecord is the collector-side stored form of a usage log, keyed by
// (DeviceID, Date, AppName). Repeated delivery of the same key overwrites.
type UsageLogRecord struct {
	DeviceID     string    `json:"device_id"`
	Date         string    `json:"date"`
	AppName      string    `json:"app_name"`
	TotalSeconds int64     `json:"total_seconds"`
	LastUpdated  time.Time `json:"last_updated"`
	ExpireAt     time.Time `json:"expire_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
