// Package session keeps the authenticated identity of each client session
// and persists it in a key-value store so it survives restarts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"canchita/internal/cache"
	"canchita/internal/logger"
	"canchita/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// KeyPrefix namespaces persisted identities in the store.
const KeyPrefix = "canchita:session:"

// Change is delivered to subscribers whenever the identity is set or cleared.
// Identity is nil after a clear.
type Change struct {
	Identity *models.Identity `json:"identity"`
	At       time.Time        `json:"at"`
}

// Cache holds the identity of one session.
type Cache struct {
	sessionID string
	store     cache.Store
	ttl       time.Duration
	now       func() time.Time

	// adopt registers a transient cache with its manager and returns the
	// cache that owns the session. Nil for standalone caches.
	adopt func(*Cache) *Cache

	mu       sync.RWMutex
	identity *models.Identity
	subs     map[int]chan Change
	nextSub  int
}

func (c *Cache) owner() *Cache {
	if c.adopt == nil {
		return c
	}
	return c.adopt(c)
}

func NewCache(sessionID string, store cache.Store, ttl time.Duration) *Cache {
	return &Cache{
		sessionID: sessionID,
		store:     store,
		ttl:       ttl,
		now:       time.Now,
		subs:      make(map[int]chan Change),
	}
}

func (c *Cache) key() string {
	return KeyPrefix + c.sessionID
}

func (c *Cache) SessionID() string {
	return c.sessionID
}

// Restore loads a persisted identity. Anything unusable is deleted from the
// store and the session starts anonymous.
func (c *Cache) Restore(ctx context.Context) *models.Identity {
	log := logger.WithContext(ctx).With("session_id", c.sessionID)

	data, err := c.store.Get(ctx, c.key())
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn("Failed to read persisted session", "error", err)
		}
		return nil
	}

	id, reason := decodeIdentity(data, c.now())
	if id == nil {
		log.Warn("Discarding persisted session", "reason", reason)
		if err := c.store.Delete(ctx, c.key()); err != nil {
			log.Warn("Failed to delete persisted session", "error", err)
		}
		return nil
	}

	c.mu.Lock()
	c.identity = id
	c.mu.Unlock()
	return clone(id)
}

// Refresh reconciles the in-memory identity with the store, where another
// instance may have logged the session in or out. A missing record or an
// expired token clears the identity; other unreadable records and store
// errors keep it.
func (c *Cache) Refresh(ctx context.Context) {
	var id *models.Identity

	data, err := c.store.Get(ctx, c.key())
	switch {
	case errors.Is(err, cache.ErrMiss):
	case err != nil:
		logger.WithContext(ctx).Warn("Failed to read persisted session", "session_id", c.sessionID, "error", err)
		return
	default:
		var reason string
		id, reason = decodeIdentity(data, c.now())
		if id == nil && reason != reasonExpired {
			return
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if sameIdentity(c.identity, id) {
		return
	}
	c.identity = id
	c.broadcast(Change{Identity: clone(id), At: c.now()})
}

func sameIdentity(a, b *models.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

const reasonExpired = "token expired"

func decodeIdentity(data []byte, now time.Time) (*models.Identity, string) {
	var id models.Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, "malformed json"
	}
	if id.Email == "" || (id.ID <= 0 && !id.Guest) {
		return nil, "unexpected shape"
	}
	if tokenExpired(id.Token, now) {
		return nil, reasonExpired
	}
	id.Normalize()
	return &id, ""
}

// tokenExpired only inspects the exp claim. The backend still verifies signatures.
// Opaque (non-JWT) tokens never expire here.
func tokenExpired(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}

// Set replaces the identity, persists it and notifies subscribers.
// A persistence failure is logged; the in-memory identity is still updated.
func (c *Cache) Set(ctx context.Context, id *models.Identity) {
	if o := c.owner(); o != c {
		o.Set(ctx, id)
		return
	}
	if id == nil {
		c.Clear(ctx)
		return
	}
	stored := clone(id)
	stored.Normalize()

	if data, err := json.Marshal(stored); err == nil {
		if err := c.store.Set(ctx, c.key(), data, c.ttl); err != nil {
			logger.WithContext(ctx).Warn("Failed to persist session", "session_id", c.sessionID, "error", err)
		}
	}

	c.mu.Lock()
	c.identity = stored
	c.broadcast(Change{Identity: clone(stored), At: c.now()})
	c.mu.Unlock()
}

// Clear drops the identity locally and in the store. It never fails.
func (c *Cache) Clear(ctx context.Context) {
	if o := c.owner(); o != c {
		o.Clear(ctx)
		return
	}
	if err := c.store.Delete(ctx, c.key()); err != nil {
		logger.WithContext(ctx).Warn("Failed to delete persisted session", "session_id", c.sessionID, "error", err)
	}

	c.mu.Lock()
	c.identity = nil
	c.broadcast(Change{At: c.now()})
	c.mu.Unlock()
}

// Current returns a copy of the identity, if one is set.
func (c *Cache) Current() (*models.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return nil, false
	}
	return clone(c.identity), true
}

// Subscribe returns a channel of identity changes and a function that ends the
// subscription. Slow readers only see the latest change.
func (c *Cache) Subscribe() (<-chan Change, func()) {
	if o := c.owner(); o != c {
		return o.Subscribe()
	}
	ch := make(chan Change, 1)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// broadcast must be called with mu held.
func (c *Cache) broadcast(ev Change) {
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func (c *Cache) subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

func clone(id *models.Identity) *models.Identity {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}
