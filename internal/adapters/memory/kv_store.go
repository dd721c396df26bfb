package memory

import (
	"context"
	"sync"

	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
)

// KeyValueStore - in-process key space of one origin. Values count against
// the quota as len(key)+len(value).
type KeyValueStore struct {
	mu         sync.RWMutex
	items      map[string]string
	quotaBytes int64
	usedBytes  int64

	unavailable bool
}

var _ port.KeyValueStorePort = (*KeyValueStore)(nil)

func NewKeyValueStore(quotaBytes int64) *KeyValueStore {
	return &KeyValueStore{
		items:      make(map[string]string),
		quotaBytes: quotaBytes,
	}
}

// SetUnavailable makes every operation fail as if storage were disabled.
func (s *KeyValueStore) SetUnavailable(unavailable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = unavailable
}

func (s *KeyValueStore) GetItem(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.unavailable {
		return "", domain.ErrStorageUnavailable
	}

	value, ok := s.items[key]
	if !ok {
		return "", domain.ErrKeyMissing
	}
	return value, nil
}

func (s *KeyValueStore) SetItem(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unavailable {
		return domain.ErrStorageUnavailable
	}
	used := s.usedBytes + entrySize(key, value)
	if old, ok := s.items[key]; ok {
		used -= entrySize(key, old)
	}
	if s.quotaBytes > 0 && used > s.quotaBytes {
		return domain.ErrQuotaExceeded
	}

	s.items[key] = value
	s.usedBytes = used
	return nil
}

func (s *KeyValueStore) RemoveItem(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unavailable {
		return domain.ErrStorageUnavailable
	}
	if old, ok := s.items[key]; ok {
		s.usedBytes -= entrySize(key, old)
		delete(s.items, key)
	}
	return nil
}

func (s *KeyValueStore) Usage(ctx context.Context) (domain.StorageUsage, error) {
	if err := ctx.Err(); err != nil {
		return domain.StorageUsage{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.unavailable {
		return domain.StorageUsage{}, domain.ErrStorageUnavailable
	}
	return domain.StorageUsage{QuotaBytes: s.quotaBytes, UsedBytes: s.usedBytes}, nil
}

// Keys returns the stored keys; used by the CLI and tests.
func (s *KeyValueStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	return keys
}

func entrySize(key, value string) int64 {
	return int64(len(key) + len(value))
}

// StoreFactory hands out one KeyValueStore per origin, shared by all its tabs.
type StoreFactory struct {
	mu         sync.Mutex
	stores     map[string]*KeyValueStore
	quotaBytes int64
}

var _ port.OriginStoreFactory = (*StoreFactory)(nil)

func NewStoreFactory(quotaBytes int64) *StoreFactory {
	return &StoreFactory{
		stores:     make(map[string]*KeyValueStore),
		quotaBytes: quotaBytes,
	}
}

func (f *StoreFactory) Open(ctx context.Context, origin string) (port.KeyValueStorePort, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	store, ok := f.stores[origin]
	if !ok {
		store = NewKeyValueStore(f.quotaBytes)
		f.stores[origin] = store
	}
	return store, nil
}
