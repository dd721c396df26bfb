package usecase

import (
	"context"
	"errors"

	"github.com/apesoftware1/Memorial-sub001/internal/contracts"
	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
)

// Initialize loads the list for this tab: cache first, then the primary
// record, then the backup. It never fails; an unrecoverable load leaves the
// list empty with the error set. Calling it again reloads.
func (s *FavoritesStore) Initialize(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	logger := s.methodLogger(ctx, "Initialize")
	logger.Info("Initialization started", nil)

	s.mu.Lock()
	s.isLoading = true
	s.mu.Unlock()
	s.notify()

	items, source, loadErr := s.load(ctx, logger)
	items = s.normalize(items)

	s.mu.Lock()
	s.favorites = items
	s.isLoading = false
	s.lastError = loadErr
	s.mu.Unlock()
	s.notify()

	logger.Info("Initialization finished", port.Fields{
		"source": source,
		"items":  len(items),
		"failed": loadErr != nil,
	})
}

func (s *FavoritesStore) load(ctx context.Context, logger port.LoggerPort) ([]domain.FavoriteItem, string, *string) {
	if cached, ok := s.cache.Get(ctx); ok {
		return cached, "cache", nil
	}

	var items []domain.FavoriteItem
	err := s.storage.ReadJSON(ctx, s.config.PrimaryKey, contracts.FavoritesListRecord, &items)
	switch {
	case err == nil:
		items = s.normalize(items)
		if len(items) > 0 {
			if cacheErr := s.cache.Set(ctx, items); cacheErr != nil {
				logger.Warn("Cache write-through failed", port.Fields{"error": cacheErr.Error()})
			}
		}
		return items, "primary", nil
	case errors.Is(err, domain.ErrKeyMissing):
		return []domain.FavoriteItem{}, "empty", nil
	}

	logger.Error("Primary record could not be loaded", err, port.Fields{"kind": string(domain.KindOf(err))})

	restored, ok := s.backup.Restore(ctx)
	if !ok {
		logger.Warn("No backup to recover from", nil)
		return []domain.FavoriteItem{}, "empty", strPtr(ErrMsgLoadFailed)
	}

	restored = s.normalize(restored)
	logger.Info("Recovered favorites from backup", port.Fields{"items": len(restored)})
	s.repair(ctx, restored, logger)
	return restored, "backup", strPtr(ErrMsgLoadFailed)
}

// repair writes a recovered list back to the primary key and the cache.
func (s *FavoritesStore) repair(ctx context.Context, items []domain.FavoriteItem, logger port.LoggerPort) {
	if err := s.storage.Write(ctx, s.config.PrimaryKey, items); err != nil {
		logger.Warn("Could not repair primary record", port.Fields{"error": err.Error()})
		return
	}
	if err := s.cache.Set(ctx, items); err != nil {
		logger.Warn("Could not refresh cache after repair", port.Fields{"error": err.Error()})
	}
}

// normalize assigns a missing addedAt and drops repeated ids, keeping the
// first occurrence.
func (s *FavoritesStore) normalize(items []domain.FavoriteItem) []domain.FavoriteItem {
	now := s.nowMillis()
	seen := make(map[string]struct{}, len(items))
	out := make([]domain.FavoriteItem, 0, len(items))
	for _, item := range items {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		if item.AddedAt == 0 {
			item.AddedAt = now
		}
		out = append(out, item)
	}
	return out
}
