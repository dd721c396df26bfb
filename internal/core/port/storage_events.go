package port

import (
	"context"

	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
)

// StorageEventPublisherPort announces a key change to the other tabs of an origin.
type StorageEventPublisherPort interface {
	Publish(ctx context.Context, event domain.StorageEvent) error
}

// StorageEventSubscriberPort delivers changes made by other tabs of the same origin.
// Events raised by tabID itself are never delivered. The channel is closed
// once ctx is done.
type StorageEventSubscriberPort interface {
	Subscribe(ctx context.Context, origin, tabID string) (<-chan domain.StorageEvent, error)
}

// StorageEventBusPort - both sides of the inter-tab channel.
type StorageEventBusPort interface {
	StorageEventPublisherPort
	StorageEventSubscriberPort
	Close() error
}
