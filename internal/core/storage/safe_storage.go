package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/apesoftware1/Memorial-sub001/internal/contracts"
	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
)

// SafeStorage wraps an origin key space. Every failure comes back as a
// *domain.StorageError, so callers only decide what to do with the kind.
type SafeStorage struct {
	kv     port.KeyValueStorePort
	logger port.LoggerPort
}

func NewSafeStorage(kv port.KeyValueStorePort, logger port.LoggerPort) (*SafeStorage, error) {
	if kv == nil {
		return nil, fmt.Errorf("safe storage: key-value store cannot be nil")
	}
	return &SafeStorage{
		kv:     kv,
		logger: logger.WithFields(port.Fields{"component": "SafeStorage"}),
	}, nil
}

// ReadRaw returns the stored string for key.
func (s *SafeStorage) ReadRaw(ctx context.Context, key string) (string, error) {
	value, err := s.kv.GetItem(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrKeyMissing) {
			return "", domain.NewStorageError(domain.KindKeyMissing, key, nil)
		}
		s.logger.Warn("Storage read failed", port.Fields{"key": key, "error": err.Error()})
		return "", domain.NewStorageError(domain.KindStorageUnavailable, key, err)
	}
	return value, nil
}

// ReadJSON reads key, validates it against schemaKey and decodes it into dest.
// A value that is not JSON or does not match the schema is a CorruptRecord.
func (s *SafeStorage) ReadJSON(ctx context.Context, key, schemaKey string, dest any) error {
	value, err := s.ReadRaw(ctx, key)
	if err != nil {
		return err
	}

	if err := contracts.Validate(schemaKey, []byte(value)); err != nil {
		s.logger.Warn("Stored record failed validation", port.Fields{"key": key, "error": err.Error()})
		return domain.NewStorageError(domain.KindCorruptRecord, key, err)
	}
	if err := json.Unmarshal([]byte(value), dest); err != nil {
		s.logger.Warn("Stored record could not be decoded", port.Fields{"key": key, "error": err.Error()})
		return domain.NewStorageError(domain.KindCorruptRecord, key, err)
	}
	return nil
}

// Write serializes value and stores it under key.
func (s *SafeStorage) Write(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("Failed to serialize value", err, port.Fields{"key": key})
		return domain.NewStorageError(domain.KindCorruptRecord, key, err)
	}

	if err := s.kv.SetItem(ctx, key, string(data)); err != nil {
		kind := domain.KindStorageUnavailable
		if errors.Is(err, domain.ErrQuotaExceeded) {
			kind = domain.KindQuotaExceeded
		}
		s.logger.Warn("Storage write failed", port.Fields{"key": key, "kind": string(kind), "error": err.Error()})
		return domain.NewStorageError(kind, key, err)
	}
	return nil
}

// Remove is best-effort; failures are only logged.
func (s *SafeStorage) Remove(ctx context.Context, key string) {
	if err := s.kv.RemoveItem(ctx, key); err != nil && !errors.Is(err, domain.ErrKeyMissing) {
		s.logger.Warn("Storage remove failed", port.Fields{"key": key, "error": err.Error()})
	}
}

func (s *SafeStorage) Usage(ctx context.Context) (domain.StorageUsage, error) {
	usage, err := s.kv.Usage(ctx)
	if err != nil {
		return domain.StorageUsage{}, domain.NewStorageError(domain.KindStorageUnavailable, "", err)
	}
	return usage, nil
}

// ReadOrDefault returns the decoded value of key, or def when it is missing,
// unreadable or corrupt.
func ReadOrDefault[T any](ctx context.Context, s *SafeStorage, key, schemaKey string, def T) T {
	var value T
	if err := s.ReadJSON(ctx, key, schemaKey, &value); err != nil {
		return def
	}
	return value
}
