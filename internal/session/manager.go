package session

import (
	"context"
	"sync"
	"time"

	"canchita/internal/cache"

	"github.com/google/uuid"
)

// Manager owns the per-session caches of this process.
type Manager struct {
	store cache.Store
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry

	// OnCount is called with the number of in-memory sessions after it changes.
	OnCount func(int)
}

type entry struct {
	cache    *Cache
	lastSeen time.Time
}

func NewManager(store cache.Store, ttl time.Duration) *Manager {
	return &Manager{
		store:    store,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// NewSessionID mints an unguessable session id.
func (m *Manager) NewSessionID() string {
	return uuid.NewString()
}

// Get returns the cache for sessionID. A known session is reconciled with the
// store first, so logins and logouts made by other instances are seen.
// Unknown sessions without a persisted identity get a transient cache that
// is only kept once it is logged in or subscribed to.
func (m *Manager) Get(ctx context.Context, sessionID string) *Cache {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	if ok {
		e.lastSeen = m.now()
	}
	m.mu.Unlock()
	if ok {
		e.cache.Refresh(ctx)
		return e.cache
	}

	c := NewCache(sessionID, m.store, m.ttl)
	c.now = m.now
	c.adopt = m.adopt
	if c.Restore(ctx) == nil {
		return c
	}
	return m.adopt(c)
}

// adopt keeps c as the cache of its session unless another request got there
// first, in which case that cache is returned.
func (m *Manager) adopt(c *Cache) *Cache {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[c.sessionID]; ok {
		e.lastSeen = m.now()
		return e.cache
	}
	m.sessions[c.sessionID] = &entry{cache: c, lastSeen: m.now()}
	m.countChanged()
	return c
}

// Len reports how many sessions are held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Forget drops the in-memory cache of a session unless someone is still
// subscribed to it. The persisted copy is untouched.
func (m *Manager) Forget(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[sessionID]; ok && e.cache.subscribers() == 0 {
		delete(m.sessions, sessionID)
		m.countChanged()
	}
}

// Sweep evicts sessions idle for longer than idle that have no live subscribers.
// They are restored from the store if the client comes back.
func (m *Manager) Sweep(idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-idle)
	evicted := 0
	for sid, e := range m.sessions {
		if e.lastSeen.Before(cutoff) && e.cache.subscribers() == 0 {
			delete(m.sessions, sid)
			evicted++
		}
	}
	if evicted > 0 {
		m.countChanged()
	}
	return evicted
}

// RunSweeper sweeps every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(idle)
		}
	}
}

func (m *Manager) countChanged() {
	if m.OnCount != nil {
		m.OnCount(len(m.sessions))
	}
}
