package domain

import "time"

// StorageEvent is raised after a tab changes a key of its origin.
// NewValue is nil when the key was removed.
type StorageEvent struct {
	Origin     string    `json:"origin"`
	Key        string    `json:"key"`
	OldValue   *string   `json:"oldValue,omitempty"`
	NewValue   *string   `json:"newValue,omitempty"`
	SourceTab  string    `json:"sourceTab"`
	OccurredAt time.Time `json:"occurredAt"`
}

// StorageUsage - raw numbers reported by an origin key space.
type StorageUsage struct {
	QuotaBytes int64
	UsedBytes  int64
}

// StorageInfo is diagnostic only.
type StorageInfo struct {
	QuotaBytes     int64  `json:"quotaBytes"`
	UsedBytes      int64  `json:"usedBytes"`
	AvailableBytes int64  `json:"availableBytes"`
	ListBytes      int64  `json:"listBytes"`
	ItemCount      int    `json:"itemCount"`
	CacheValid     bool   `json:"cacheValid"`
	BackupAt       *int64 `json:"backupAt,omitempty"`

	UsedHuman      string `json:"usedHuman"`
	AvailableHuman string `json:"availableHuman"`
	ListHuman      string `json:"listHuman"`
}
