package sqlite_adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
)

const (
	selectItemQuery = `SELECT item_value FROM origin_items WHERE origin = ? AND item_key = ?`

	// usage counts bytes, not characters, like len() does for Go strings
	usedBytesQuery = `
		SELECT COALESCE(SUM(LENGTH(CAST(item_key AS BLOB)) + LENGTH(CAST(item_value AS BLOB))), 0)
		FROM origin_items
		WHERE origin = ? AND item_key <> ?`

	upsertItemQuery = `
		INSERT INTO origin_items (origin, item_key, item_value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (origin, item_key) DO UPDATE
		SET item_value = excluded.item_value, updated_at = excluded.updated_at`

	deleteItemQuery = `DELETE FROM origin_items WHERE origin = ? AND item_key = ?`
)

// KeyValueStore keeps the key space of one origin in a SQLite table, so it
// survives restarts of the service.
type KeyValueStore struct {
	db         *sqlx.DB
	origin     string
	quotaBytes int64
	logger     port.LoggerPort
}

var _ port.KeyValueStorePort = (*KeyValueStore)(nil)

func NewKeyValueStore(db *sqlx.DB, origin string, quotaBytes int64, baseLogger port.LoggerPort) (*KeyValueStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlx.DB cannot be nil")
	}
	if origin == "" {
		return nil, fmt.Errorf("origin cannot be empty")
	}
	return &KeyValueStore{
		db:         db,
		origin:     origin,
		quotaBytes: quotaBytes,
		logger: baseLogger.WithFields(port.Fields{
			"component": "SQLiteKeyValueStore",
			"origin":    origin,
		}),
	}, nil
}

func (s *KeyValueStore) GetItem(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, selectItemQuery, s.origin, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrKeyMissing
		}
		s.logger.Error("Failed to read item", err, port.Fields{"key": key})
		return "", unavailable(err)
	}
	return value, nil
}

func (s *KeyValueStore) SetItem(ctx context.Context, key, value string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.Error("Failed to begin transaction", err, port.Fields{"key": key})
		return unavailable(err)
	}
	defer tx.Rollback()

	if s.quotaBytes > 0 {
		var used int64
		if err := tx.GetContext(ctx, &used, usedBytesQuery, s.origin, key); err != nil {
			s.logger.Error("Failed to compute usage", err, port.Fields{"key": key})
			return unavailable(err)
		}
		if used+int64(len(key)+len(value)) > s.quotaBytes {
			s.logger.Warn("Quota exceeded", port.Fields{"key": key, "used_bytes": used, "quota_bytes": s.quotaBytes})
			return domain.ErrQuotaExceeded
		}
	}

	if _, err := tx.ExecContext(ctx, upsertItemQuery, s.origin, key, value, time.Now().UnixMilli()); err != nil {
		s.logger.Error("Failed to write item", err, port.Fields{"key": key})
		return unavailable(err)
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error("Failed to commit item", err, port.Fields{"key": key})
		return unavailable(err)
	}
	return nil
}

func (s *KeyValueStore) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, deleteItemQuery, s.origin, key); err != nil {
		s.logger.Error("Failed to remove item", err, port.Fields{"key": key})
		return unavailable(err)
	}
	return nil
}

func (s *KeyValueStore) Usage(ctx context.Context) (domain.StorageUsage, error) {
	var used int64
	// an empty key never exists, so nothing is excluded
	if err := s.db.GetContext(ctx, &used, usedBytesQuery, s.origin, ""); err != nil {
		s.logger.Error("Failed to compute usage", err, nil)
		return domain.StorageUsage{}, unavailable(err)
	}
	return domain.StorageUsage{QuotaBytes: s.quotaBytes, UsedBytes: used}, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}

// StoreFactory opens origin key spaces backed by one database.
type StoreFactory struct {
	db         *sqlx.DB
	quotaBytes int64
	logger     port.LoggerPort
}

var _ port.OriginStoreFactory = (*StoreFactory)(nil)

func NewStoreFactory(db *sqlx.DB, quotaBytes int64, logger port.LoggerPort) *StoreFactory {
	return &StoreFactory{db: db, quotaBytes: quotaBytes, logger: logger}
}

func (f *StoreFactory) Open(ctx context.Context, origin string) (port.KeyValueStorePort, error) {
	return NewKeyValueStore(f.db, origin, f.quotaBytes, f.logger)
}
