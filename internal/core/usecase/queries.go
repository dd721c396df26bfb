package usecase

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
)

// IsFavorite checks the in-memory list only.
func (s *FavoritesStore) IsFavorite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return indexOf(s.favorites, id) >= 0
}

// GetSortedFavorites orders a copy of the list by addedAt; equal timestamps
// keep their list order.
func (s *FavoritesStore) GetSortedFavorites(ascending bool) []domain.FavoriteItem {
	s.mu.RLock()
	items := cloneItems(s.favorites)
	s.mu.RUnlock()

	sort.SliceStable(items, func(i, j int) bool {
		if ascending {
			return items[i].AddedAt < items[j].AddedAt
		}
		return items[i].AddedAt > items[j].AddedAt
	})
	return items
}

// GetPaginatedFavorites slices the list in its current order.
func (s *FavoritesStore) GetPaginatedFavorites(page, limit int) domain.PaginatedFavorites {
	s.mu.RLock()
	items := cloneItems(s.favorites)
	s.mu.RUnlock()

	return Paginate(items, page, limit, s.config.DefaultPageSize)
}

// Paginate returns page of items. page < 1 means the first page and
// limit < 1 means defaultLimit.
func Paginate(items []domain.FavoriteItem, page, limit, defaultLimit int) domain.PaginatedFavorites {
	if limit < 1 {
		limit = defaultLimit
	}
	if limit < 1 {
		limit = 1
	}
	if page < 1 {
		page = 1
	}

	total := len(items)
	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}
	if totalPages < 1 {
		totalPages = 1
	}

	// compared before multiplying so huge page or limit values cannot overflow
	pageItems := []domain.FavoriteItem{}
	if page <= totalPages && total > 0 {
		start := (page - 1) * limit
		end := total
		if limit < total-start {
			end = start + limit
		}
		pageItems = append(pageItems, items[start:end]...)
	}

	return domain.PaginatedFavorites{
		Items:       pageItems,
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// GetStorageInfo is diagnostic; unavailable storage reports zero usage.
func (s *FavoritesStore) GetStorageInfo(ctx context.Context) domain.StorageInfo {
	logger := s.methodLogger(ctx, "GetStorageInfo")

	s.mu.RLock()
	items := cloneItems(s.favorites)
	s.mu.RUnlock()

	info := domain.StorageInfo{ItemCount: len(items)}

	if data, err := json.Marshal(items); err == nil {
		info.ListBytes = int64(len(data))
	}

	usage, err := s.storage.Usage(ctx)
	if err != nil {
		logger.Warn("Storage usage unavailable", port.Fields{"error": err.Error()})
	} else {
		info.QuotaBytes = usage.QuotaBytes
		info.UsedBytes = usage.UsedBytes
		if usage.QuotaBytes > usage.UsedBytes {
			info.AvailableBytes = usage.QuotaBytes - usage.UsedBytes
		}
	}

	info.CacheValid = s.cache.IsValid(ctx)
	if at, ok := s.backup.LastBackupAt(ctx); ok {
		info.BackupAt = &at
	}

	info.UsedHuman = humanize.IBytes(uint64(info.UsedBytes))
	info.AvailableHuman = humanize.IBytes(uint64(info.AvailableBytes))
	info.ListHuman = humanize.IBytes(uint64(info.ListBytes))
	return info
}
