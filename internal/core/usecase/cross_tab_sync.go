package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/apesoftware1/Memorial-sub001/internal/contextkeys"
	"github.com/apesoftware1/Memorial-sub001/internal/contracts"
	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
)

type listAdopter interface {
	Adopt(ctx context.Context, items []domain.FavoriteItem)
}

// CrossTabSync makes a tab adopt the favorites list written by any other tab
// of its origin. Last write wins; lists are replaced, never merged.
type CrossTabSync struct {
	store      listAdopter
	subscriber port.StorageEventSubscriberPort
	origin     string
	tabID      string
	key        string
	logger     port.LoggerPort

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewCrossTabSync(store listAdopter, subscriber port.StorageEventSubscriberPort, origin, tabID, key string, baseLogger port.LoggerPort) *CrossTabSync {
	return &CrossTabSync{
		store:      store,
		subscriber: subscriber,
		origin:     origin,
		tabID:      tabID,
		key:        key,
		logger: baseLogger.WithFields(port.Fields{
			"component": "CrossTabSync",
			"origin":    origin,
			"tab_id":    tabID,
		}),
	}
}

// Start subscribes and handles events in the background until Stop is
// called or ctx is done.
func (c *CrossTabSync) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return fmt.Errorf("cross-tab sync for tab %s already started", c.tabID)
	}

	subCtx, cancel := context.WithCancel(ctx)
	events, err := c.subscriber.Subscribe(subCtx, c.origin, c.tabID)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to storage events: %w", err)
	}

	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(subCtx, events, c.done)

	c.logger.Info("Cross-tab sync started", nil)
	return nil
}

func (c *CrossTabSync) run(ctx context.Context, events <-chan domain.StorageEvent, done chan struct{}) {
	defer close(done)
	for event := range events {
		_ = c.HandleEvent(ctx, event)
	}
	c.logger.Debug("Storage event stream closed", nil)
}

// Stop cancels the subscription and waits for the handler to exit.
func (c *CrossTabSync) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.logger.Info("Cross-tab sync stopped", nil)
}

// HandleEvent applies one storage event. Events for other keys, origins or
// removals are ignored; an unparseable payload is logged and reported as
// SyncPayloadInvalid, never applied.
func (c *CrossTabSync) HandleEvent(ctx context.Context, event domain.StorageEvent) error {
	if event.Key != c.key || event.Origin != c.origin || event.SourceTab == c.tabID {
		return nil
	}
	if event.NewValue == nil {
		c.logger.Debug("Ignoring removal of favorites key", port.Fields{"source_tab": event.SourceTab})
		return nil
	}

	raw := []byte(*event.NewValue)
	if err := contracts.Validate(contracts.FavoritesListRecord, raw); err != nil {
		c.logger.Warn("Ignoring invalid favorites payload from another tab", port.Fields{
			"source_tab": event.SourceTab,
			"error":      err.Error(),
		})
		return domain.NewStorageError(domain.KindSyncPayloadInvalid, event.Key, err)
	}

	var items []domain.FavoriteItem
	if err := json.Unmarshal(raw, &items); err != nil {
		c.logger.Warn("Ignoring undecodable favorites payload from another tab", port.Fields{
			"source_tab": event.SourceTab,
			"error":      err.Error(),
		})
		return domain.NewStorageError(domain.KindSyncPayloadInvalid, event.Key, err)
	}
	if items == nil {
		items = []domain.FavoriteItem{}
	}

	c.store.Adopt(contextkeys.ContextWithLogger(ctx, c.logger), items)
	return nil
}
