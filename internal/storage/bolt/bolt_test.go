package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/webtime/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "webtime.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStateStore_DeviceID(t *testing.T) {
	ctx := context.Background()
	state := openTestStore(t).State()

	if _, err := state.LoadDeviceID(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("LoadDeviceID on empty store: err = %v, want ErrNotFound", err)
	}

	if err := state.SaveDeviceID(ctx, "aeb1c9a4-0d6f-4a0e-9f6c-2f4f9f1d8b11"); err != nil {
		t.Fatalf("SaveDeviceID failed: %v", err)
	}
	id, err := state.LoadDeviceID(ctx)
	if err != nil {
		t.Fatalf("LoadDeviceID failed: %v", err)
	}
	if id != "aeb1c9a4-0d6f-4a0e-9f6c-2f4f9f1d8b11" {
		t.Errorf("device id = %s", id)
	}
}

func TestStateStore_SessionCheckpoint(t *testing.T) {
	ctx := context.Background()
	state := openTestStore(t).State()

	if _, err := state.LoadSession(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("LoadSession on empty store: err = %v, want ErrNotFound", err)
	}

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	checkpoint := storage.SessionCheckpoint{AppName: "www.youtube.com", StartTime: start}
	if err := state.SaveSession(ctx, checkpoint); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	loaded, err := state.LoadSession(ctx)
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if loaded.AppName != "www.youtube.com" || !loaded.StartTime.Equal(start) {
		t.Errorf("loaded checkpoint = %+v", loaded)
	}

	if err := state.ClearSession(ctx); err != nil {
		t.Fatalf("ClearSession failed: %v", err)
	}
	if _, err := state.LoadSession(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("LoadSession after clear: err = %v, want ErrNotFound", err)
	}

	// Clearing an already-clear checkpoint is fine; startup recovery relies
	// on that.
	if err := state.ClearSession(ctx); err != nil {
		t.Errorf("second ClearSession failed: %v", err)
	}
}

func TestStateStore_LedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	state := openTestStore(t).State()

	if _, err := state.LoadLedger(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("LoadLedger on empty store: err = %v, want ErrNotFound", err)
	}

	ledger := storage.DailyLedger{
		"2026-03-01": {
			"chrome":          {TotalSeconds: 120, LastUpdated: "2026-03-01T10:00:00Z"},
			"www.youtube.com": {TotalSeconds: 45, LastUpdated: "2026-03-01T11:00:00Z"},
		},
		"2026-03-02": {
			"chrome": {TotalSeconds: 30, LastUpdated: "2026-03-02T09:00:00Z"},
		},
	}
	if err := state.SaveLedger(ctx, ledger); err != nil {
		t.Fatalf("SaveLedger failed: %v", err)
	}

	loaded, err := state.LoadLedger(ctx)
	if err != nil {
		t.Fatalf("LoadLedger failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d dates, want 2", len(loaded))
	}
	if got := loaded["2026-03-01"]["chrome"]; got.TotalSeconds != 120 || got.LastUpdated != "2026-03-01T10:00:00Z" {
		t.Errorf("cell = %+v", got)
	}

	// Saves replace the whole snapshot, dropped dates do not linger.
	delete(ledger, "2026-03-01")
	if err := state.SaveLedger(ctx, ledger); err != nil {
		t.Fatalf("SaveLedger failed: %v", err)
	}
	loaded, err = state.LoadLedger(ctx)
	if err != nil {
		t.Fatalf("LoadLedger failed: %v", err)
	}
	if _, ok := loaded["2026-03-01"]; ok {
		t.Error("dropped date survived a snapshot save")
	}
}

func TestStateStore_SentDatesAndFingerprint(t *testing.T) {
	ctx := context.Background()
	state := openTestStore(t).State()

	if _, err := state.LoadSentDates(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("LoadSentDates on empty store: err = %v, want ErrNotFound", err)
	}

	if err := state.SaveSentDates(ctx, []string{"2026-03-01", "2026-03-02"}); err != nil {
		t.Fatalf("SaveSentDates failed: %v", err)
	}
	dates, err := state.LoadSentDates(ctx)
	if err != nil {
		t.Fatalf("LoadSentDates failed: %v", err)
	}
	if len(dates) != 2 || dates[0] != "2026-03-01" {
		t.Errorf("dates = %v", dates)
	}

	// A nil slice stores as an empty list, not as a missing key.
	if err := state.SaveSentDates(ctx, nil); err != nil {
		t.Fatalf("SaveSentDates(nil) failed: %v", err)
	}
	dates, err = state.LoadSentDates(ctx)
	if err != nil {
		t.Fatalf("LoadSentDates after nil save failed: %v", err)
	}
	if len(dates) != 0 {
		t.Errorf("dates = %v, want empty", dates)
	}

	if _, err := state.LoadFingerprint(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("LoadFingerprint on empty store: err = %v, want ErrNotFound", err)
	}
	if err := state.SaveFingerprint(ctx, "1a2b3c4d"); err != nil {
		t.Fatalf("SaveFingerprint failed: %v", err)
	}
	fingerprint, err := state.LoadFingerprint(ctx)
	if err != nil {
		t.Fatalf("LoadFingerprint failed: %v", err)
	}
	if fingerprint != "1a2b3c4d" {
		t.Errorf("fingerprint = %s", fingerprint)
	}
}

func testRecord(deviceID, date, appName string, totalSeconds int64, expireAt time.Time) storage.UsageLogRecord {
	return storage.UsageLogRecord{
		DeviceID:     deviceID,
		Date:         date,
		AppName:      appName,
		TotalSeconds: totalSeconds,
		LastUpdated:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ExpireAt:     expireAt,
		UpdatedAt:    time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC),
	}
}

func TestLogStore_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	logs := openTestStore(t).Logs()

	const device = "aeb1c9a4-0d6f-4a0e-9f6c-2f4f9f1d8b11"
	expire := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	if _, err := logs.Get(ctx, device, "2026-03-01", "chrome"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get on empty store: err = %v, want ErrNotFound", err)
	}

	if err := logs.Upsert(ctx, testRecord(device, "2026-03-01", "chrome", 100, expire)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	record, err := logs.Get(ctx, device, "2026-03-01", "chrome")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record.TotalSeconds != 100 {
		t.Errorf("TotalSeconds = %d, want 100", record.TotalSeconds)
	}

	// Same key overwrites in place.
	if err := logs.Upsert(ctx, testRecord(device, "2026-03-01", "chrome", 160, expire)); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	record, err = logs.Get(ctx, device, "2026-03-01", "chrome")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record.TotalSeconds != 160 {
		t.Errorf("TotalSeconds = %d, want 160", record.TotalSeconds)
	}
}

func TestLogStore_ListByDate(t *testing.T) {
	ctx := context.Background()
	logs := openTestStore(t).Logs()

	const device = "aeb1c9a4-0d6f-4a0e-9f6c-2f4f9f1d8b11"
	expire := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	for _, record := range []storage.UsageLogRecord{
		testRecord(device, "2026-03-01", "chrome", 100, expire),
		testRecord(device, "2026-03-01", "www.youtube.com", 50, expire),
		testRecord(device, "2026-03-02", "chrome", 30, expire),
	} {
		if err := logs.Upsert(ctx, record); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	records, err := logs.ListByDate(ctx, "2026-03-01")
	if err != nil {
		t.Fatalf("ListByDate failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("listed %d records, want 2", len(records))
	}
	for _, record := range records {
		if record.Date != "2026-03-01" {
			t.Errorf("record for %s leaked into the 2026-03-01 listing", record.Date)
		}
	}

	records, err = logs.ListByDate(ctx, "2026-04-01")
	if err != nil {
		t.Fatalf("ListByDate failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("listed %d records for an empty date, want 0", len(records))
	}
}

func TestLogStore_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	logs := openTestStore(t).Logs()

	const device = "aeb1c9a4-0d6f-4a0e-9f6c-2f4f9f1d8b11"
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	for _, record := range []storage.UsageLogRecord{
		testRecord(device, "2026-02-01", "chrome", 10, now.AddDate(0, 0, -1)),
		testRecord(device, "2026-02-02", "chrome", 20, now.AddDate(0, 0, -2)),
		testRecord(device, "2026-03-30", "chrome", 30, now.AddDate(0, 0, 28)),
	} {
		if err := logs.Upsert(ctx, record); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	deleted, err := logs.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	if _, err := logs.Get(ctx, device, "2026-02-01", "chrome"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expired record still readable: err = %v", err)
	}
	if _, err := logs.Get(ctx, device, "2026-03-30", "chrome"); err != nil {
		t.Errorf("live record removed: %v", err)
	}

	// A second sweep finds nothing.
	deleted, err = logs.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("second DeleteExpired failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
}
