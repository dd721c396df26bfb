package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/apesoftware1/Memorial-sub001/internal/contracts"
	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
)

type BackupLayerConfig struct {
	Key      string
	Interval time.Duration
	Now      func() time.Time
}

// BackupLayer keeps a throttled snapshot used only to recover a lost or
// corrupted primary record. None of its failures reach the caller.
type BackupLayer struct {
	storage *SafeStorage
	config  BackupLayerConfig
	logger  port.LoggerPort
}

func NewBackupLayer(storage *SafeStorage, cfg BackupLayerConfig, logger port.LoggerPort) (*BackupLayer, error) {
	if storage == nil {
		return nil, fmt.Errorf("backup layer: storage cannot be nil")
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("backup layer: key is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &BackupLayer{
		storage: storage,
		config:  cfg,
		logger:  logger.WithFields(port.Fields{"component": "BackupLayer", "key": cfg.Key}),
	}, nil
}

// MaybeBackup writes items unless a backup younger than the interval exists.
func (b *BackupLayer) MaybeBackup(ctx context.Context, items []domain.FavoriteItem) bool {
	if at, ok := b.LastBackupAt(ctx); ok {
		if b.config.Now().UnixMilli()-at < b.config.Interval.Milliseconds() {
			return false
		}
	}
	return b.ForceBackup(ctx, items)
}

// ForceBackup writes items regardless of the throttle.
func (b *BackupLayer) ForceBackup(ctx context.Context, items []domain.FavoriteItem) bool {
	envelope := domain.BackupEnvelope{
		Data:      nonNil(items),
		Timestamp: b.config.Now().UnixMilli(),
	}
	if err := b.storage.Write(ctx, b.config.Key, envelope); err != nil {
		b.logger.Warn("Backup write skipped", port.Fields{"error": err.Error()})
		return false
	}
	b.logger.Debug("Backup written", port.Fields{"items": len(envelope.Data)})
	return true
}

// Restore returns the last backup payload, or false when there is none.
func (b *BackupLayer) Restore(ctx context.Context) ([]domain.FavoriteItem, bool) {
	envelope, ok := b.read(ctx)
	if !ok {
		return nil, false
	}
	return nonNil(envelope.Data), true
}

// LastBackupAt returns the epoch-ms time of the current backup.
func (b *BackupLayer) LastBackupAt(ctx context.Context) (int64, bool) {
	envelope, ok := b.read(ctx)
	if !ok {
		return 0, false
	}
	return envelope.Timestamp, true
}

func (b *BackupLayer) read(ctx context.Context) (domain.BackupEnvelope, bool) {
	var envelope domain.BackupEnvelope
	if err := b.storage.ReadJSON(ctx, b.config.Key, contracts.BackupEnvelopeRecord, &envelope); err != nil {
		return domain.BackupEnvelope{}, false
	}
	return envelope, true
}
