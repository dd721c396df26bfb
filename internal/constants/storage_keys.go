package constants

import "time"

// Keys of the origin key space owned by the favorites store.
const (
	FavoritesKey       = "favorites"
	FavoritesCacheKey  = "favorites_cache"
	FavoritesBackupKey = "favorites_backup"
)

const (
	// CacheVersion changes only on breaking changes of the cached item shape.
	CacheVersion = 1

	CacheDuration  = 24 * time.Hour
	BackupInterval = 60 * time.Second

	DefaultPageSize = 12

	// DefaultQuotaBytes matches what browsers usually grant an origin.
	DefaultQuotaBytes = 5 * 1024 * 1024

	DefaultOrigin = "default"

	// A tab session unused this long, with no open change stream, is closed.
	TabIdleTimeout      = 30 * time.Minute
	TabEvictionInterval = time.Minute
)
