package bolt

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/goodtune/webtime/internal/storage"
)

type logStore struct {
	db *bbolt.DB
}

// logKey uniquely identifies a record; repeated delivery of the same key
// overwrites rather than duplicates.
func logKey(deviceID, date, appName string) string {
	return deviceID + "_" + date + "_" + appName
}

func (s *logStore) Upsert(ctx context.Context, record storage.UsageLogRecord) error {
	key := logKey(record.DeviceID, record.Date, record.AppName)
	return putBucketValue(ctx, s.db, bucketUsageLogs, key, record)
}

func (s *logStore) Get(ctx context.Context, deviceID, date, appName string) (*storage.UsageLogRecord, error) {
	key := logKey(deviceID, date, appName)
	return getBucketValue[storage.UsageLogRecord](ctx, s.db, bucketUsageLogs, key)
}

func (s *logStore) ListByDate(ctx context.Context, date string) ([]storage.UsageLogRecord, error) {
	var records []storage.UsageLogRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketUsageLogs))
		if b == nil {
			return fmt.Errorf("usage logs bucket missing")
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var record storage.UsageLogRecord
			if err := unmarshal(v, &record); err != nil {
				return err
			}
			if record.Date == date {
				records = append(records, record)
			}
		}
		return nil
	})
	return records, err
}

func (s *logStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketUsageLogs))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var record storage.UsageLogRecord
			if err := unmarshal(v, &record); err != nil {
				return err
			}
			if record.ExpireAt.Before(now) {
				if err := c.Delete(); err != nil {
					return err
				}
				deleted++
			}
		}
		return nil
	})
	return deleted, err
}
