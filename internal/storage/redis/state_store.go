package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/goodtune/webtime/internal/storage"
)

// State keys. Each key holds one whole JSON document; SET replaces the
// previous snapshot atomically.
const (
	keyDeviceID    = "webtime:state:deviceId"
	keySession     = "webtime:state:trackingSession"
	keyDailyUsage  = "webtime:state:dailyUsage"
	keySentDates   = "webtime:state:sentDates"
	keyFingerprint = "webtime:state:lastSentFingerprint"
)

type stateStore struct {
	client *redis.Client
}

func (s *stateStore) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *stateStore) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.client.Set(ctx, key, data, 0).Err()
}

func (s *stateStore) LoadDeviceID(ctx context.Context) (string, error) {
	var id string
	if err := s.getJSON(ctx, keyDeviceID, &id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *stateStore) SaveDeviceID(ctx context.Context, id string) error {
	return s.setJSON(ctx, keyDeviceID, id)
}

func (s *stateStore) LoadSession(ctx context.Context) (*storage.SessionCheckpoint, error) {
	var session storage.SessionCheckpoint
	if err := s.getJSON(ctx, keySession, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *stateStore) SaveSession(ctx context.Context, session storage.SessionCheckpoint) error {
	return s.setJSON(ctx, keySession, session)
}

func (s *stateStore) ClearSession(ctx context.Context) error {
	return s.client.Del(ctx, keySession).Err()
}

func (s *stateStore) LoadLedger(ctx context.Context) (storage.DailyLedger, error) {
	var ledger storage.DailyLedger
	if err := s.getJSON(ctx, keyDailyUsage, &ledger); err != nil {
		return nil, err
	}
	return ledger, nil
}

func (s *stateStore) SaveLedger(ctx context.Context, ledger storage.DailyLedger) error {
	return s.setJSON(ctx, keyDailyUsage, ledger)
}

func (s *stateStore) LoadSentDates(ctx context.Context) ([]string, error) {
	var dates []string
	if err := s.getJSON(ctx, keySentDates, &dates); err != nil {
		return nil, err
	}
	return dates, nil
}

func (s *stateStore) SaveSentDates(ctx context.Context, dates []string) error {
	if dates == nil {
		dates = []string{}
	}
	return s.setJSON(ctx, keySentDates, dates)
}

func (s *stateStore) LoadFingerprint(ctx context.Context) (string, error) {
	var fingerprint string
	if err := s.getJSON(ctx, keyFingerprint, &fingerprint); err != nil {
		return "", err
	}
	return fingerprint, nil
}

func (s *stateStore) SaveFingerprint(ctx context.Context, fingerprint string) error {
	return s.setJSON(ctx, keyFingerprint, fingerprint)
}
