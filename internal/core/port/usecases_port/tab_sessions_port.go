package usecases_port

import "context"

// TabSessionsPort opens and closes per-tab favorites stores.
type TabSessionsPort interface {
	Open(ctx context.Context, origin, tabID string) (FavoritesStorePort, error)
	// Hold keeps the tab open while a long-lived reader uses it.
	Hold(origin, tabID string) (release func())
	Close(origin, tabID string) bool
}
