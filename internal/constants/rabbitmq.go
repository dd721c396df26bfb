package constants

const (
	StorageEventsExchange     = "favorites.storage.events"
	StorageEventsExchangeType = "fanout"
	StorageEventType          = "StorageEvent"
	StorageEventVersion       = "1.0.0"
)
