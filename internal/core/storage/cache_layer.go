package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apesoftware1/Memorial-sub001/internal/contracts"
	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
)

type CacheLayerConfig struct {
	Key      string
	Version  int
	Duration time.Duration
	Now      func() time.Time
}

// CacheLayer keeps a time-boxed, versioned copy of the favorites list.
type CacheLayer struct {
	storage *SafeStorage
	config  CacheLayerConfig
	logger  port.LoggerPort
}

func NewCacheLayer(storage *SafeStorage, cfg CacheLayerConfig, logger port.LoggerPort) (*CacheLayer, error) {
	if storage == nil {
		return nil, fmt.Errorf("cache layer: storage cannot be nil")
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("cache layer: key is required")
	}
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("cache layer: duration must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CacheLayer{
		storage: storage,
		config:  cfg,
		logger:  logger.WithFields(port.Fields{"component": "CacheLayer", "key": cfg.Key}),
	}, nil
}

// Get returns the cached list, or false on a miss. Envelopes that are
// malformed, of another version or expired are deleted.
func (c *CacheLayer) Get(ctx context.Context) ([]domain.FavoriteItem, bool) {
	return c.load(ctx, true)
}

// IsValid reports whether Get would hit, without evicting anything.
func (c *CacheLayer) IsValid(ctx context.Context) bool {
	_, ok := c.load(ctx, false)
	return ok
}

// Set overwrites the envelope with items stamped now.
func (c *CacheLayer) Set(ctx context.Context, items []domain.FavoriteItem) error {
	envelope := domain.CacheEnvelope{
		Data:      nonNil(items),
		Timestamp: c.config.Now().UnixMilli(),
		Version:   c.config.Version,
	}
	return c.storage.Write(ctx, c.config.Key, envelope)
}

// Clear deletes the envelope; the next Get is a miss.
func (c *CacheLayer) Clear(ctx context.Context) {
	c.storage.Remove(ctx, c.config.Key)
	c.logger.Debug("Cache cleared", nil)
}

func (c *CacheLayer) load(ctx context.Context, evict bool) ([]domain.FavoriteItem, bool) {
	var envelope domain.CacheEnvelope
	err := c.storage.ReadJSON(ctx, c.config.Key, contracts.CacheEnvelopeRecord, &envelope)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrKeyMissing), errors.Is(err, domain.ErrStorageUnavailable):
		return nil, false
	default:
		c.logger.Debug("Cache envelope unreadable", port.Fields{"error": err.Error()})
		c.evict(ctx, evict)
		return nil, false
	}

	if envelope.Version != c.config.Version {
		c.logger.Debug("Cache version mismatch", port.Fields{"found": envelope.Version, "expected": c.config.Version})
		c.evict(ctx, evict)
		return nil, false
	}

	age := c.config.Now().UnixMilli() - envelope.Timestamp
	if age >= c.config.Duration.Milliseconds() {
		c.logger.Debug("Cache expired", port.Fields{"age_ms": age})
		c.evict(ctx, evict)
		return nil, false
	}

	return nonNil(envelope.Data), true
}

func (c *CacheLayer) evict(ctx context.Context, evict bool) {
	if evict {
		c.storage.Remove(ctx, c.config.Key)
	}
}

func nonNil(items []domain.FavoriteItem) []domain.FavoriteItem {
	if items == nil {
		return []domain.FavoriteItem{}
	}
	return items
}
