package usecase

import (
	"context"

	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
)

// AddFavorite appends item stamped with the current time. It returns false,
// and changes nothing, when the id is empty or already in the list.
func (s *FavoritesStore) AddFavorite(ctx context.Context, item domain.FavoriteItem) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	logger := s.methodLogger(ctx, "AddFavorite").WithFields(port.Fields{"favorite_id": item.ID})

	if item.ID == "" {
		logger.Warn("Rejected favorite without id", nil)
		return false
	}

	s.mu.Lock()
	if indexOf(s.favorites, item.ID) >= 0 {
		s.mu.Unlock()
		logger.Debug("Already a favorite", nil)
		return false
	}
	item.AddedAt = s.nowMillis()
	next := append(cloneItems(s.favorites), item)
	s.favorites = next
	s.mu.Unlock()

	s.persist(ctx, next, false, logger)
	s.notify()
	logger.Info("Favorite added", port.Fields{"total": len(next)})
	return true
}

// RemoveFavorite drops every item with id. Removing an unknown id still
// persists the unchanged list.
func (s *FavoritesStore) RemoveFavorite(ctx context.Context, id string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	logger := s.methodLogger(ctx, "RemoveFavorite").WithFields(port.Fields{"favorite_id": id})

	s.mu.Lock()
	next := make([]domain.FavoriteItem, 0, len(s.favorites))
	for _, item := range s.favorites {
		if item.ID != id {
			next = append(next, item)
		}
	}
	removed := len(s.favorites) - len(next)
	s.favorites = next
	s.mu.Unlock()

	s.persist(ctx, next, false, logger)
	s.notify()
	logger.Info("Favorite removed", port.Fields{"removed": removed, "total": len(next)})
}

// ClearAllFavorites empties the list. The backup is rewritten regardless of
// its throttle so an older list cannot be restored later.
func (s *FavoritesStore) ClearAllFavorites(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	logger := s.methodLogger(ctx, "ClearAllFavorites")

	next := []domain.FavoriteItem{}
	s.mu.Lock()
	s.favorites = next
	s.mu.Unlock()

	s.persist(ctx, next, true, logger)
	s.notify()
	logger.Info("Favorites cleared", nil)
}

// Adopt replaces the list wholesale with one written by another tab and
// refreshes this tab's cache. Nothing is written to the primary key.
func (s *FavoritesStore) Adopt(ctx context.Context, items []domain.FavoriteItem) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	logger := s.methodLogger(ctx, "Adopt")

	next := cloneItems(items)
	s.mu.Lock()
	s.favorites = next
	s.mu.Unlock()

	if err := s.cache.Set(ctx, next); err != nil {
		logger.Warn("Cache refresh after adoption failed", port.Fields{"error": err.Error()})
	}
	s.notify()
	logger.Info("Adopted list from another tab", port.Fields{"total": len(next)})
}

// RefreshCache drops the cache envelope; the list and the primary record
// stay as they are.
func (s *FavoritesStore) RefreshCache(ctx context.Context) {
	s.cache.Clear(ctx)
	s.methodLogger(ctx, "RefreshCache").Info("Cache invalidated", nil)
}

// persist writes primary, cache and backup in that order. Only a failed
// primary write is reported through the error field; the in-memory list is
// never rolled back.
func (s *FavoritesStore) persist(ctx context.Context, items []domain.FavoriteItem, forceBackup bool, logger port.LoggerPort) {
	if err := s.storage.Write(ctx, s.config.PrimaryKey, items); err != nil {
		logger.Error("Primary write failed", err, port.Fields{"kind": string(domain.KindOf(err))})
		s.setError(strPtr(ErrMsgSaveFailed))
	} else {
		s.setError(nil)
	}

	if err := s.cache.Set(ctx, items); err != nil {
		logger.Warn("Cache write failed", port.Fields{"error": err.Error()})
	}

	if forceBackup {
		s.backup.ForceBackup(ctx, items)
	} else {
		s.backup.MaybeBackup(ctx, items)
	}
}

func indexOf(items []domain.FavoriteItem, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
