package usecases_port

import (
	"context"

	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
)

// FavoritesStorePort is everything a view may do with the favorites of one tab.
type FavoritesStorePort interface {
	State() domain.FavoritesState
	AddFavorite(ctx context.Context, item domain.FavoriteItem) bool
	RemoveFavorite(ctx context.Context, id string)
	ClearAllFavorites(ctx context.Context)
	IsFavorite(id string) bool
	GetPaginatedFavorites(page, limit int) domain.PaginatedFavorites
	GetSortedFavorites(ascending bool) []domain.FavoriteItem
	RefreshCache(ctx context.Context)
	GetStorageInfo(ctx context.Context) domain.StorageInfo

	// Subscribe returns state snapshots emitted after each change and a
	// function that stops them.
	Subscribe() (<-chan domain.FavoritesState, func())
}
