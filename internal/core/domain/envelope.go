package domain

// CacheEnvelope wraps a favorites snapshot with its write time and schema version.
// It is only valid while Version matches the current one and it is younger than
// the cache duration.
type CacheEnvelope struct {
	Data      []FavoriteItem `json:"data"`
	Timestamp int64          `json:"timestamp"`
	Version   int            `json:"version"`
}

// BackupEnvelope - last known-good list, kept for recovery only.
type BackupEnvelope struct {
	Data      []FavoriteItem `json:"data"`
	Timestamp int64          `json:"timestamp"`
}
