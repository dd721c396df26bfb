package storage

import (
	"context"
	"errors"
	"time"

	"github.com/apesoftware1/Memorial-sub001/internal/contextkeys"
	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
)

// TabStorage is the key space as seen by one tab: every effective change is
// announced to the other tabs of the origin, the way a browser raises
// storage events.
type TabStorage struct {
	kv        port.KeyValueStorePort
	publisher port.StorageEventPublisherPort
	origin    string
	tabID     string
	now       func() time.Time
	logger    port.LoggerPort
}

var _ port.KeyValueStorePort = (*TabStorage)(nil)

func NewTabStorage(kv port.KeyValueStorePort, publisher port.StorageEventPublisherPort, origin, tabID string, logger port.LoggerPort) *TabStorage {
	return &TabStorage{
		kv:        kv,
		publisher: publisher,
		origin:    origin,
		tabID:     tabID,
		now:       time.Now,
		logger: logger.WithFields(port.Fields{
			"component": "TabStorage",
			"origin":    origin,
			"tab_id":    tabID,
		}),
	}
}

func (t *TabStorage) GetItem(ctx context.Context, key string) (string, error) {
	return t.kv.GetItem(ctx, key)
}

func (t *TabStorage) SetItem(ctx context.Context, key, value string) error {
	oldValue := t.previous(ctx, key)
	if err := t.kv.SetItem(ctx, key, value); err != nil {
		return err
	}
	if oldValue != nil && *oldValue == value {
		return nil
	}
	t.publish(ctx, key, oldValue, &value)
	return nil
}

func (t *TabStorage) RemoveItem(ctx context.Context, key string) error {
	oldValue := t.previous(ctx, key)
	if err := t.kv.RemoveItem(ctx, key); err != nil {
		return err
	}
	if oldValue == nil {
		return nil
	}
	t.publish(ctx, key, oldValue, nil)
	return nil
}

func (t *TabStorage) Usage(ctx context.Context) (domain.StorageUsage, error) {
	return t.kv.Usage(ctx)
}

func (t *TabStorage) previous(ctx context.Context, key string) *string {
	value, err := t.kv.GetItem(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyMissing) {
			t.logger.Debug("Could not read previous value", port.Fields{"key": key, "error": err.Error()})
		}
		return nil
	}
	return &value
}

func (t *TabStorage) publish(ctx context.Context, key string, oldValue, newValue *string) {
	if t.publisher == nil {
		return
	}
	event := domain.StorageEvent{
		Origin:     t.origin,
		Key:        key,
		OldValue:   oldValue,
		NewValue:   newValue,
		SourceTab:  t.tabID,
		OccurredAt: t.now().UTC(),
	}
	if err := t.publisher.Publish(ctx, event); err != nil {
		contextkeys.WithTraceID(ctx, t.logger).Warn("Failed to publish storage event", port.Fields{"key": key, "error": err.Error()})
	}
}
