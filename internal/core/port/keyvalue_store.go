package port

import (
	"context"

	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
)

// KeyValueStorePort - the persistent, origin-scoped, string-only key space of one
// browser profile. Implementations report failures as domain sentinel errors:
// ErrKeyMissing, ErrQuotaExceeded, ErrStorageUnavailable.
type KeyValueStorePort interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	Usage(ctx context.Context) (domain.StorageUsage, error)
}

// OriginStoreFactory opens the key space of an origin (browser profile).
type OriginStoreFactory interface {
	Open(ctx context.Context, origin string) (KeyValueStorePort, error)
}
