package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apesoftware1/Memorial-sub001/internal/constants"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port/usecases_port"
	"github.com/apesoftware1/Memorial-sub001/internal/core/storage"
)

type tabKey struct {
	origin string
	tabID  string
}

type tabSession struct {
	store    *FavoritesStore
	crossTab *CrossTabSync
	ready    chan struct{}
	err      error

	// guarded by TabManager.mu
	lastSeen time.Time
	holds    int
}

func (s *tabSession) isReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// TabManager owns the favorites store and cross-tab sync of every open tab.
// Browsers close tabs without saying so; a session nobody used for the idle
// timeout and that has no open stream is closed.
type TabManager struct {
	factory port.OriginStoreFactory
	bus     port.StorageEventBusPort
	config  FavoritesStoreConfig
	logger  port.LoggerPort

	idleTimeout   time.Duration
	evictInterval time.Duration
	now           func() time.Time

	// rootCtx outlives the requests that open tabs.
	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu       sync.Mutex
	sessions map[tabKey]*tabSession
}

var _ usecases_port.TabSessionsPort = (*TabManager)(nil)

type TabManagerOption func(*TabManager)

// WithIdleTimeout sets how long an unused tab stays open; d <= 0 keeps tabs
// until they are closed explicitly.
func WithIdleTimeout(d time.Duration) TabManagerOption {
	return func(m *TabManager) {
		m.idleTimeout = d
	}
}

// WithEvictionInterval sets how often idle tabs are looked for; d <= 0
// disables the background sweep, EvictIdle can still be called.
func WithEvictionInterval(d time.Duration) TabManagerOption {
	return func(m *TabManager) {
		m.evictInterval = d
	}
}

func WithTabClock(now func() time.Time) TabManagerOption {
	return func(m *TabManager) {
		m.now = now
	}
}

// NewTabManager uses template for every store; its Origin and TabID are
// replaced per tab.
func NewTabManager(factory port.OriginStoreFactory, bus port.StorageEventBusPort, template FavoritesStoreConfig, baseLogger port.LoggerPort, opts ...TabManagerOption) *TabManager {
	rootCtx, cancel := context.WithCancel(context.Background())
	m := &TabManager{
		factory:       factory,
		bus:           bus,
		config:        template,
		logger:        baseLogger.WithFields(port.Fields{"component": "TabManager"}),
		idleTimeout:   constants.TabIdleTimeout,
		evictInterval: constants.TabEvictionInterval,
		now:           time.Now,
		rootCtx:       rootCtx,
		rootCancel:    cancel,
		sessions:      make(map[tabKey]*tabSession),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.idleTimeout > 0 && m.evictInterval > 0 {
		go m.runEviction()
	}
	return m
}

// Open returns the store of the tab, creating and initializing it on first
// use. Concurrent opens of one tab share a session.
func (m *TabManager) Open(ctx context.Context, origin, tabID string) (usecases_port.FavoritesStorePort, error) {
	key := tabKey{origin: origin, tabID: tabID}

	m.mu.Lock()
	if session, ok := m.sessions[key]; ok {
		session.lastSeen = m.now()
		m.mu.Unlock()
		select {
		case <-session.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if session.err != nil {
			return nil, session.err
		}
		return session.store, nil
	}
	session := &tabSession{ready: make(chan struct{}), lastSeen: m.now()}
	m.sessions[key] = session
	m.mu.Unlock()

	session.store, session.crossTab, session.err = m.start(ctx, origin, tabID)
	if session.err != nil {
		m.mu.Lock()
		delete(m.sessions, key)
		m.mu.Unlock()
	}
	close(session.ready)

	if session.err != nil {
		return nil, session.err
	}
	return session.store, nil
}

func (m *TabManager) start(ctx context.Context, origin, tabID string) (*FavoritesStore, *CrossTabSync, error) {
	logger := m.logger.WithFields(port.Fields{"origin": origin, "tab_id": tabID})

	kv, err := m.factory.Open(ctx, origin)
	if err != nil {
		logger.Error("Failed to open origin storage", err, nil)
		return nil, nil, fmt.Errorf("failed to open storage of origin %s: %w", origin, err)
	}

	cfg := m.config
	cfg.Origin = origin
	cfg.TabID = tabID

	store, err := NewFavoritesStore(storage.NewTabStorage(kv, m.bus, origin, tabID, m.logger), cfg, m.logger)
	if err != nil {
		return nil, nil, err
	}

	tabSync := NewCrossTabSync(store, m.bus, origin, tabID, store.config.PrimaryKey, m.logger)
	if err := tabSync.Start(m.rootCtx); err != nil {
		logger.Error("Failed to start cross-tab sync", err, nil)
		return nil, nil, err
	}

	store.Initialize(context.WithoutCancel(ctx))
	logger.Info("Tab opened", nil)
	return store, tabSync, nil
}

// Hold keeps an open tab from being evicted until release is called. It is
// taken for the lifetime of a change stream. Holding a tab that is not open
// is a no-op.
func (m *TabManager) Hold(origin, tabID string) (release func()) {
	key := tabKey{origin: origin, tabID: tabID}

	m.mu.Lock()
	session, ok := m.sessions[key]
	if ok {
		session.holds++
	}
	m.mu.Unlock()

	if !ok {
		return func() {}
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			session.holds--
			session.lastSeen = m.now()
			m.mu.Unlock()
		})
	}
}

// Close stops the tab's sync and ends its subscriptions. It reports whether
// the tab was open.
func (m *TabManager) Close(origin, tabID string) bool {
	key := tabKey{origin: origin, tabID: tabID}

	m.mu.Lock()
	session, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	<-session.ready
	return m.stop(key, session, "Tab closed")
}

func (m *TabManager) stop(key tabKey, session *tabSession, msg string) bool {
	if session.err != nil {
		return false
	}
	session.crossTab.Stop()
	session.store.Close()
	m.logger.Info(msg, port.Fields{"origin": key.origin, "tab_id": key.tabID})
	return true
}

// EvictIdle closes every ready tab that has no hold and was not used for the
// idle timeout. It returns how many were closed.
func (m *TabManager) EvictIdle() int {
	if m.idleTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTimeout)

	evicted := make(map[tabKey]*tabSession)
	m.mu.Lock()
	for key, session := range m.sessions {
		if session.holds > 0 || !session.isReady() || session.lastSeen.After(cutoff) {
			continue
		}
		delete(m.sessions, key)
		evicted[key] = session
	}
	m.mu.Unlock()

	for key, session := range evicted {
		m.stop(key, session, "Idle tab evicted")
	}
	return len(evicted)
}

func (m *TabManager) runEviction() {
	ticker := time.NewTicker(m.evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.rootCtx.Done():
			return
		case <-ticker.C:
			if n := m.EvictIdle(); n > 0 {
				m.logger.Debug("Idle tabs evicted", port.Fields{"count": n, "open": m.Len()})
			}
		}
	}
}

// CloseAll closes every tab; used on shutdown.
func (m *TabManager) CloseAll() {
	m.rootCancel()

	m.mu.Lock()
	keys := make([]tabKey, 0, len(m.sessions))
	for key := range m.sessions {
		keys = append(keys, key)
	}
	m.mu.Unlock()

	for _, key := range keys {
		m.Close(key.origin, key.tabID)
	}
	m.logger.Info("All tabs closed", port.Fields{"count": len(keys)})
}

// Len returns the number of open tabs.
func (m *TabManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
