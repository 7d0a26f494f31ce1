package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pipewatch/backend/services/monitor-service/internal/models"
)

// LatestStore caches the most recent reading per station for quick dashboard
// access. Entries expire so a silent station eventually drops out of the
// cache on its own.
type LatestStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLatestStore returns redis-backed store.
func NewLatestStore(client *redis.Client, ttl time.Duration) *LatestStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &LatestStore{client: client, ttl: ttl}
}

func (s *LatestStore) key(stationID string) string {
	return fmt.Sprintf("stations:latest:%s", stationID)
}

// StoreLatest caches the reading under the station's key.
func (s *LatestStore) StoreLatest(ctx context.Context, reading *models.Reading) error {
	data, err := json.Marshal(reading)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(reading.StationID), data, s.ttl).Err()
}

// Latest returns the cached reading for a station, or redis.Nil when absent.
func (s *LatestStore) Latest(ctx context.Context, stationID string) (*models.Reading, error) {
	result, err := s.client.Get(ctx, s.key(stationID)).Result()
	if err != nil {
		return nil, err
	}
	var reading models.Reading
	if err := json.Unmarshal([]byte(result), &reading); err != nil {
		return nil, err
	}
	return &reading, nil
}
