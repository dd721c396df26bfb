package postgres_adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apesoftware1/Memorial-sub001/internal/contextkeys"
	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
)

const (
	selectItemQuery = `SELECT item_value FROM origin_items WHERE origin = $1 AND item_key = $2`

	// serializes writers of one origin so the quota check and the write agree
	lockOriginQuery = `SELECT pg_advisory_xact_lock(hashtext($1))`

	usedBytesQuery = `
		SELECT COALESCE(SUM(octet_length(item_key) + octet_length(item_value)), 0)
		FROM origin_items
		WHERE origin = $1 AND item_key <> $2`

	upsertItemQuery = `
		INSERT INTO origin_items (origin, item_key, item_value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (origin, item_key) DO UPDATE
		SET item_value = EXCLUDED.item_value, updated_at = EXCLUDED.updated_at`

	deleteItemQuery = `DELETE FROM origin_items WHERE origin = $1 AND item_key = $2`
)

// KeyValueStore keeps the key space of one origin in PostgreSQL, shared by
// every instance of the service.
type KeyValueStore struct {
	pool       *pgxpool.Pool
	origin     string
	quotaBytes int64
}

var _ port.KeyValueStorePort = (*KeyValueStore)(nil)

func NewKeyValueStore(pool *pgxpool.Pool, origin string, quotaBytes int64) (*KeyValueStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	if origin == "" {
		return nil, fmt.Errorf("origin cannot be empty")
	}
	return &KeyValueStore{pool: pool, origin: origin, quotaBytes: quotaBytes}, nil
}

func (s *KeyValueStore) methodLogger(ctx context.Context, method, key string) port.LoggerPort {
	return contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "PostgresKeyValueStore",
		"method":    method,
		"origin":    s.origin,
		"key":       key,
	})
}

func (s *KeyValueStore) GetItem(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, selectItemQuery, s.origin, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrKeyMissing
		}
		s.methodLogger(ctx, "GetItem", key).Error("Failed to read item", err, nil)
		return "", classify(err)
	}
	return value, nil
}

func (s *KeyValueStore) SetItem(ctx context.Context, key, value string) error {
	repoLogger := s.methodLogger(ctx, "SetItem", key)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		repoLogger.Error("Failed to begin transaction", err, nil)
		return classify(err)
	}
	defer tx.Rollback(ctx)

	if s.quotaBytes > 0 {
		if _, err := tx.Exec(ctx, lockOriginQuery, s.origin); err != nil {
			repoLogger.Error("Failed to lock origin", err, nil)
			return classify(err)
		}
		var used int64
		if err := tx.QueryRow(ctx, usedBytesQuery, s.origin, key).Scan(&used); err != nil {
			repoLogger.Error("Failed to compute usage", err, nil)
			return classify(err)
		}
		if used+int64(len(key)+len(value)) > s.quotaBytes {
			repoLogger.Warn("Quota exceeded", port.Fields{"used_bytes": used, "quota_bytes": s.quotaBytes})
			return domain.ErrQuotaExceeded
		}
	}

	if _, err := tx.Exec(ctx, upsertItemQuery, s.origin, key, value); err != nil {
		repoLogger.Error("Failed to write item", err, nil)
		return classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		repoLogger.Error("Failed to commit item", err, nil)
		return classify(err)
	}
	return nil
}

func (s *KeyValueStore) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, deleteItemQuery, s.origin, key); err != nil {
		s.methodLogger(ctx, "RemoveItem", key).Error("Failed to remove item", err, nil)
		return classify(err)
	}
	return nil
}

func (s *KeyValueStore) Usage(ctx context.Context) (domain.StorageUsage, error) {
	var used int64
	if err := s.pool.QueryRow(ctx, usedBytesQuery, s.origin, "").Scan(&used); err != nil {
		s.methodLogger(ctx, "Usage", "").Error("Failed to compute usage", err, nil)
		return domain.StorageUsage{}, classify(err)
	}
	return domain.StorageUsage{QuotaBytes: s.quotaBytes, UsedBytes: used}, nil
}

// classify maps class 53 (insufficient resources, e.g. disk full) to a quota
// error and everything else to unavailable storage.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "53") {
		return fmt.Errorf("%w: %v", domain.ErrQuotaExceeded, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}

// StoreFactory opens origin key spaces backed by one pool.
type StoreFactory struct {
	pool       *pgxpool.Pool
	quotaBytes int64
}

var _ port.OriginStoreFactory = (*StoreFactory)(nil)

func NewStoreFactory(pool *pgxpool.Pool, quotaBytes int64) *StoreFactory {
	return &StoreFactory{pool: pool, quotaBytes: quotaBytes}
}

func (f *StoreFactory) Open(ctx context.Context, origin string) (port.KeyValueStorePort, error) {
	return NewKeyValueStore(f.pool, origin, f.quotaBytes)
}
