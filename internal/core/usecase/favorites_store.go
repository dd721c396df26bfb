package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apesoftware1/Memorial-sub001/internal/constants"
	"github.com/apesoftware1/Memorial-sub001/internal/contextkeys"
	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port/usecases_port"
	"github.com/apesoftware1/Memorial-sub001/internal/core/storage"
)

const (
	ErrMsgLoadFailed = "Could not load your favorites."
	ErrMsgSaveFailed = "Could not save your favorites. Changes will be lost after reload."
)

const listenerBuffer = 16

type FavoritesStoreConfig struct {
	Origin string
	TabID  string

	PrimaryKey string
	CacheKey   string
	BackupKey  string

	CacheVersion    int
	CacheDuration   time.Duration
	BackupInterval  time.Duration
	DefaultPageSize int

	Now func() time.Time
}

// DefaultFavoritesStoreConfig returns the production keys and timings.
func DefaultFavoritesStoreConfig(origin, tabID string) FavoritesStoreConfig {
	return FavoritesStoreConfig{
		Origin:          origin,
		TabID:           tabID,
		PrimaryKey:      constants.FavoritesKey,
		CacheKey:        constants.FavoritesCacheKey,
		BackupKey:       constants.FavoritesBackupKey,
		CacheVersion:    constants.CacheVersion,
		CacheDuration:   constants.CacheDuration,
		BackupInterval:  constants.BackupInterval,
		DefaultPageSize: constants.DefaultPageSize,
		Now:             time.Now,
	}
}

func (c *FavoritesStoreConfig) applyDefaults() {
	def := DefaultFavoritesStoreConfig(c.Origin, c.TabID)
	if c.PrimaryKey == "" {
		c.PrimaryKey = def.PrimaryKey
	}
	if c.CacheKey == "" {
		c.CacheKey = def.CacheKey
	}
	if c.BackupKey == "" {
		c.BackupKey = def.BackupKey
	}
	if c.CacheVersion == 0 {
		c.CacheVersion = def.CacheVersion
	}
	if c.CacheDuration <= 0 {
		c.CacheDuration = def.CacheDuration
	}
	if c.BackupInterval <= 0 {
		c.BackupInterval = def.BackupInterval
	}
	if c.DefaultPageSize < 1 {
		c.DefaultPageSize = def.DefaultPageSize
	}
	if c.Now == nil {
		c.Now = def.Now
	}
}

// FavoritesStore is the in-memory source of truth of one tab. Every mutation
// is written through to the primary key, the cache and the backup.
type FavoritesStore struct {
	// writeMu orders mutations and their persistence within the tab.
	writeMu sync.Mutex

	mu        sync.RWMutex
	favorites []domain.FavoriteItem
	isLoading bool
	lastError *string

	storage *storage.SafeStorage
	cache   *storage.CacheLayer
	backup  *storage.BackupLayer

	config FavoritesStoreConfig
	logger port.LoggerPort

	listenersMu  sync.Mutex
	listeners    map[int]chan domain.FavoritesState
	nextListener int
	closed       bool
}

var _ usecases_port.FavoritesStorePort = (*FavoritesStore)(nil)

func NewFavoritesStore(kv port.KeyValueStorePort, cfg FavoritesStoreConfig, baseLogger port.LoggerPort) (*FavoritesStore, error) {
	if baseLogger == nil {
		baseLogger = contextkeys.NoopLogger()
	}
	cfg.applyDefaults()

	logger := baseLogger.WithFields(port.Fields{
		"component": "FavoritesStore",
		"origin":    cfg.Origin,
		"tab_id":    cfg.TabID,
	})

	safe, err := storage.NewSafeStorage(kv, logger)
	if err != nil {
		return nil, fmt.Errorf("favorites store: %w", err)
	}
	cache, err := storage.NewCacheLayer(safe, storage.CacheLayerConfig{
		Key:      cfg.CacheKey,
		Version:  cfg.CacheVersion,
		Duration: cfg.CacheDuration,
		Now:      cfg.Now,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("favorites store: %w", err)
	}
	backup, err := storage.NewBackupLayer(safe, storage.BackupLayerConfig{
		Key:      cfg.BackupKey,
		Interval: cfg.BackupInterval,
		Now:      cfg.Now,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("favorites store: %w", err)
	}

	return &FavoritesStore{
		favorites: []domain.FavoriteItem{},
		storage:   safe,
		cache:     cache,
		backup:    backup,
		config:    cfg,
		logger:    logger,
		listeners: make(map[int]chan domain.FavoritesState),
	}, nil
}

// State returns a snapshot; the slice is a copy.
func (s *FavoritesStore) State() domain.FavoritesState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *FavoritesStore) snapshotLocked() domain.FavoritesState {
	var errCopy *string
	if s.lastError != nil {
		msg := *s.lastError
		errCopy = &msg
	}
	return domain.FavoritesState{
		Favorites:      cloneItems(s.favorites),
		TotalFavorites: len(s.favorites),
		IsLoading:      s.isLoading,
		Error:          errCopy,
	}
}

// Subscribe returns snapshots emitted after each change. A listener that
// does not keep up misses snapshots instead of blocking the store.
func (s *FavoritesStore) Subscribe() (<-chan domain.FavoritesState, func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	ch := make(chan domain.FavoritesState, listenerBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.listenersMu.Lock()
			defer s.listenersMu.Unlock()
			if l, ok := s.listeners[id]; ok {
				delete(s.listeners, id)
				close(l)
			}
		})
	}
}

// Close ends every subscription.
func (s *FavoritesStore) Close() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.listeners {
		delete(s.listeners, id)
		close(ch)
	}
}

func (s *FavoritesStore) notify() {
	snapshot := s.State()

	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	for _, ch := range s.listeners {
		select {
		case ch <- snapshot:
		default:
			s.logger.Debug("Listener is behind, snapshot dropped", nil)
		}
	}
}

func (s *FavoritesStore) methodLogger(ctx context.Context, method string) port.LoggerPort {
	return contextkeys.WithTraceID(ctx, s.logger).WithFields(port.Fields{"method": method})
}

func (s *FavoritesStore) setError(msg *string) {
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
}

func (s *FavoritesStore) nowMillis() int64 {
	return s.config.Now().UnixMilli()
}

func cloneItems(items []domain.FavoriteItem) []domain.FavoriteItem {
	out := make([]domain.FavoriteItem, len(items))
	copy(out, items)
	return out
}

func strPtr(s string) *string {
	return &s
}
