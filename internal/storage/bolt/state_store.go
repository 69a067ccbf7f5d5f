package bolt

import (
	"context"

	"go.etcd.io/bbolt"

	"github.com/goodtune/webtime/internal/storage"
)

// State keys. Each value is one whole JSON document; writes replace the
// previous snapshot.
const (
	keyDeviceID    = "deviceId"
	keySession     = "trackingSession"
	keyDailyUsage  = "dailyUsage"
	keySentDates   = "sentDates"
	keyFingerprint = "lastSentFingerprint"
)

type stateStore struct {
	db *bbolt.DB
}

func (s *stateStore) LoadDeviceID(ctx context.Context) (string, error) {
	id, err := getBucketValue[string](ctx, s.db, bucketState, keyDeviceID)
	if err != nil {
		return "", err
	}
	return *id, nil
}

func (s *stateStore) SaveDeviceID(ctx context.Context, id string) error {
	return putBucketValue(ctx, s.db, bucketState, keyDeviceID, id)
}

func (s *stateStore) LoadSession(ctx context.Context) (*storage.SessionCheckpoint, error) {
	return getBucketValue[storage.SessionCheckpoint](ctx, s.db, bucketState, keySession)
}

func (s *stateStore) SaveSession(ctx context.Context, session storage.SessionCheckpoint) error {
	return putBucketValue(ctx, s.db, bucketState, keySession, session)
}

func (s *stateStore) ClearSession(ctx context.Context) error {
	return deleteBucketValue(ctx, s.db, bucketState, keySession)
}

func (s *stateStore) LoadLedger(ctx context.Context) (storage.DailyLedger, error) {
	ledger, err := getBucketValue[storage.DailyLedger](ctx, s.db, bucketState, keyDailyUsage)
	if err != nil {
		return nil, err
	}
	return *ledger, nil
}

func (s *stateStore) SaveLedger(ctx context.Context, ledger storage.DailyLedger) error {
	return putBucketValue(ctx, s.db, bucketState, keyDailyUsage, ledger)
}

func (s *stateStore) LoadSentDates(ctx context.Context) ([]string, error) {
	dates, err := getBucketValue[[]string](ctx, s.db, bucketState, keySentDates)
	if err != nil {
		return nil, err
	}
	return *dates, nil
}

func (s *stateStore) SaveSentDates(ctx context.Context, dates []string) error {
	if dates == nil {
		dates = []string{}
	}
	return putBucketValue(ctx, s.db, bucketState, keySentDates, dates)
}

func (s *stateStore) LoadFingerprint(ctx context.Context) (string, error) {
	fingerprint, err := getBucketValue[string](ctx, s.db, bucketState, keyFingerprint)
	if err != nil {
		return "", err
	}
	return *fingerprint, nil
}

func (s *stateStore) SaveFingerprint(ctx context.Context, fingerprint string) error {
	return putBucketValue(ctx, s.db, bucketState, keyFingerprint, fingerprint)
}
