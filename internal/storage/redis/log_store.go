package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goodtune/webtime/internal/storage"
)

type logStore struct {
	client *redis.Client
}

func logKey(deviceID, date, appName string) string {
	return fmt.Sprintf("webtime:log:%s:%s:%s", deviceID, date, appName)
}

func dateIndexKey(date string) string {
	return fmt.Sprintf("webtime:logs:date:%s", date)
}

func (s *logStore) Upsert(ctx context.Context, record storage.UsageLogRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal log record: %w", err)
	}

	key := logKey(record.DeviceID, record.Date, record.AppName)

	// Redis handles expiry natively; the TTL mirrors the record's ExpireAt.
	var ttl time.Duration
	if until := time.Until(record.ExpireAt); until > 0 {
		ttl = until
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, ttl)
	pipe.SAdd(ctx, dateIndexKey(record.Date), key)
	if ttl > 0 {
		// The index may outlive individual members; ListByDate drops stale
		// ones lazily.
		pipe.Expire(ctx, dateIndexKey(record.Date), ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *logStore) Get(ctx context.Context, deviceID, date, appName string) (*storage.UsageLogRecord, error) {
	data, err := s.client.Get(ctx, logKey(deviceID, date, appName)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var record storage.UsageLogRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *logStore) ListByDate(ctx context.Context, date string) ([]storage.UsageLogRecord, error) {
	keys, err := s.client.SMembers(ctx, dateIndexKey(date)).Result()
	if err != nil {
		return nil, err
	}

	var records []storage.UsageLogRecord
	for _, key := range keys {
		data, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			// Member expired out from under the index.
			s.client.SRem(ctx, dateIndexKey(date), key)
			continue
		}
		if err != nil {
			return nil, err
		}

		var record storage.UsageLogRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// DeleteExpired is a no-op for Redis: records carry a native TTL set at
// upsert time and expire without a sweep.
func (s *logStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
