package redis_adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
)

const originKeyPrefix = "favorites:origin:"

// setItemScript writes a hash field unless the hash would grow past the
// quota. ARGV[3] <= 0 disables the check. Returns 1 on write, 0 on refusal.
var setItemScript = redis.NewScript(`
local quota = tonumber(ARGV[3])
if quota > 0 then
  local used = 0
  local all = redis.call('HGETALL', KEYS[1])
  for i = 1, #all, 2 do
    if all[i] ~= ARGV[1] then
      used = used + string.len(all[i]) + string.len(all[i + 1])
    end
  end
  if used + string.len(ARGV[1]) + string.len(ARGV[2]) > quota then
    return 0
  end
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// KeyValueStore keeps the key space of one origin in a Redis hash.
type KeyValueStore struct {
	client     *redis.Client
	hashKey    string
	quotaBytes int64
	logger     port.LoggerPort
}

var _ port.KeyValueStorePort = (*KeyValueStore)(nil)

func NewKeyValueStore(client *redis.Client, origin string, quotaBytes int64, baseLogger port.LoggerPort) (*KeyValueStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if origin == "" {
		return nil, fmt.Errorf("origin cannot be empty")
	}
	return &KeyValueStore{
		client:     client,
		hashKey:    originKeyPrefix + origin,
		quotaBytes: quotaBytes,
		logger: baseLogger.WithFields(port.Fields{
			"component": "RedisKeyValueStore",
			"origin":    origin,
		}),
	}, nil
}

func (s *KeyValueStore) GetItem(ctx context.Context, key string) (string, error) {
	value, err := s.client.HGet(ctx, s.hashKey, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrKeyMissing
		}
		s.logger.Error("Failed to read item", err, port.Fields{"key": key})
		return "", unavailable(err)
	}
	return value, nil
}

func (s *KeyValueStore) SetItem(ctx context.Context, key, value string) error {
	written, err := setItemScript.Run(ctx, s.client, []string{s.hashKey}, key, value, s.quotaBytes).Int()
	if err != nil {
		s.logger.Error("Failed to write item", err, port.Fields{"key": key})
		return unavailable(err)
	}
	if written == 0 {
		s.logger.Warn("Quota exceeded", port.Fields{"key": key, "quota_bytes": s.quotaBytes})
		return domain.ErrQuotaExceeded
	}
	return nil
}

func (s *KeyValueStore) RemoveItem(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, s.hashKey, key).Err(); err != nil {
		s.logger.Error("Failed to remove item", err, port.Fields{"key": key})
		return unavailable(err)
	}
	return nil
}

func (s *KeyValueStore) Usage(ctx context.Context) (domain.StorageUsage, error) {
	all, err := s.client.HGetAll(ctx, s.hashKey).Result()
	if err != nil {
		s.logger.Error("Failed to compute usage", err, nil)
		return domain.StorageUsage{}, unavailable(err)
	}
	var used int64
	for k, v := range all {
		used += int64(len(k) + len(v))
	}
	return domain.StorageUsage{QuotaBytes: s.quotaBytes, UsedBytes: used}, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}

// StoreFactory opens origin key spaces on one Redis client.
type StoreFactory struct {
	client     *redis.Client
	quotaBytes int64
	logger     port.LoggerPort
}

var _ port.OriginStoreFactory = (*StoreFactory)(nil)

func NewStoreFactory(client *redis.Client, quotaBytes int64, logger port.LoggerPort) *StoreFactory {
	return &StoreFactory{client: client, quotaBytes: quotaBytes, logger: logger}
}

func (f *StoreFactory) Open(ctx context.Context, origin string) (port.KeyValueStorePort, error) {
	return NewKeyValueStore(f.client, origin, f.quotaBytes, f.logger)
}
