package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"canchita/internal/cache"
	"canchita/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

func newTestCache(store cache.Store) *Cache {
	c := NewCache("sid-1", store, time.Hour)
	c.now = func() time.Time { return now }
	return c
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1", "exp": exp.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)
	return tok
}

func TestRestoreDiscardsUnusableRecords(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed json", `{"id":1,"email":`},
		{"wrong shape", `["not","an","identity"]`},
		{"missing email", `{"id":3,"name":"Ana"}`},
		{"no id", `{"email":"a@b.com"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := cache.NewMemoryStore()
			require.NoError(t, store.Set(ctx, KeyPrefix+"sid-1", []byte(tt.data), 0))

			c := newTestCache(store)
			assert.Nil(t, c.Restore(ctx))

			_, ok := c.Current()
			assert.False(t, ok)

			_, err := store.Get(ctx, KeyPrefix+"sid-1")
			assert.ErrorIs(t, err, cache.ErrMiss)
		})
	}
}

func TestRestoreDiscardsExpiredToken(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	data, _ := json.Marshal(models.Identity{ID: 1, Email: "a@b.com", Token: signed(t, now.Add(-time.Minute))})
	require.NoError(t, store.Set(ctx, KeyPrefix+"sid-1", data, 0))

	assert.Nil(t, newTestCache(store).Restore(ctx))
}

func TestRestoreValidIdentity(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	data, _ := json.Marshal(models.Identity{ID: 1, Email: "a@b.com", Role: "administrador", Token: signed(t, now.Add(time.Hour))})
	require.NoError(t, store.Set(ctx, KeyPrefix+"sid-1", data, 0))

	c := newTestCache(store)
	id := c.Restore(ctx)
	require.NotNil(t, id)
	assert.Equal(t, models.RoleAdmin, id.Role)

	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, int64(1), cur.ID)
}

func TestOpaqueTokenIsKept(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	data, _ := json.Marshal(models.Identity{ID: 2, Email: "b@b.com", Token: "opaque-token"})
	require.NoError(t, store.Set(ctx, KeyPrefix+"sid-1", data, 0))

	assert.NotNil(t, newTestCache(store).Restore(ctx))
}

func TestSetPersistsAndNotifies(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	c := newTestCache(store)

	changes, cancel := c.Subscribe()
	defer cancel()

	c.Set(ctx, &models.Identity{ID: 5, Email: "x@y.com", Role: "nonsense"})

	ev := <-changes
	require.NotNil(t, ev.Identity)
	assert.Equal(t, int64(5), ev.Identity.ID)
	assert.Equal(t, models.RoleClient, ev.Identity.Role)

	restored := newTestCache(store).Restore(ctx)
	require.NotNil(t, restored)
	assert.Equal(t, "x@y.com", restored.Email)

	c.Clear(ctx)
	ev = <-changes
	assert.Nil(t, ev.Identity)

	_, ok := c.Current()
	assert.False(t, ok)
	assert.Nil(t, newTestCache(store).Restore(ctx))
}

func TestCurrentReturnsCopy(t *testing.T) {
	c := newTestCache(cache.NewMemoryStore())
	c.Set(context.Background(), &models.Identity{ID: 5, Email: "x@y.com"})

	cur, _ := c.Current()
	cur.Role = models.RoleOwner

	again, _ := c.Current()
	assert.Equal(t, models.RoleClient, again.Role)
}

func TestSlowSubscriberSeesLatest(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(cache.NewMemoryStore())
	changes, cancel := c.Subscribe()

	c.Set(ctx, &models.Identity{ID: 1, Email: "a@a.com"})
	c.Set(ctx, &models.Identity{ID: 2, Email: "b@b.com"})
	c.Clear(ctx)

	ev := <-changes
	assert.Nil(t, ev.Identity)

	cancel()
	cancel()
	_, open := <-changes
	assert.False(t, open)
	assert.Equal(t, 0, c.subscribers())
}

func TestManagerRestoresAndSweeps(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	clock := now

	m := NewManager(store, time.Hour)
	m.now = func() time.Time { return clock }
	var counts []int
	m.OnCount = func(n int) { counts = append(counts, n) }

	sid := m.NewSessionID()
	m.Get(ctx, sid).Set(ctx, &models.Identity{ID: 9, Email: "n@n.com"})
	assert.Same(t, m.Get(ctx, sid), m.Get(ctx, sid))

	m.Forget(sid)
	id, ok := m.Get(ctx, sid).Current()
	require.True(t, ok)
	assert.Equal(t, int64(9), id.ID)

	clock = clock.Add(2 * time.Hour)
	assert.Equal(t, 1, m.Sweep(time.Hour))
	assert.Equal(t, []int{1, 0, 1, 0}, counts)
}

func TestSweepKeepsSubscribedSessions(t *testing.T) {
	ctx := context.Background()
	clock := now
	m := NewManager(cache.NewMemoryStore(), time.Hour)
	m.now = func() time.Time { return clock }

	_, cancel := m.Get(ctx, "watched").Subscribe()
	defer cancel()

	clock = clock.Add(2 * time.Hour)
	assert.Equal(t, 0, m.Sweep(time.Hour))
}

func TestUnknownSessionsAreNotKept(t *testing.T) {
	ctx := context.Background()
	m := NewManager(cache.NewMemoryStore(), time.Hour)

	for i := 0; i < 100; i++ {
		_, ok := m.Get(ctx, m.NewSessionID()).Current()
		assert.False(t, ok)
	}
	assert.Equal(t, 0, m.Len())

	sid := m.NewSessionID()
	m.Get(ctx, sid).Set(ctx, &models.Identity{ID: 4, Email: "d@d.com"})
	assert.Equal(t, 1, m.Len())
	_, ok := m.Get(ctx, sid).Current()
	assert.True(t, ok)
}

func TestLogoutOnAnotherInstance(t *testing.T) {
	ctx := context.Background()
	shared := cache.NewMemoryStore()
	a := NewManager(shared, time.Hour)
	b := NewManager(shared, time.Hour)

	a.Get(ctx, "sid").Set(ctx, &models.Identity{ID: 7, Email: "g@g.com"})
	_, ok := b.Get(ctx, "sid").Current()
	require.True(t, ok)

	changes, cancel := b.Get(ctx, "sid").Subscribe()
	defer cancel()

	a.Get(ctx, "sid").Clear(ctx)
	a.Forget("sid")

	_, ok = b.Get(ctx, "sid").Current()
	assert.False(t, ok)
	assert.Nil(t, (<-changes).Identity)

	a.Get(ctx, "sid").Set(ctx, &models.Identity{ID: 8, Email: "h@h.com"})
	id, ok := b.Get(ctx, "sid").Current()
	require.True(t, ok)
	assert.Equal(t, int64(8), id.ID)
	assert.Equal(t, int64(8), (<-changes).Identity.ID)
}

func TestStoreErrorKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: cache.NewMemoryStore()}
	m := NewManager(store, time.Hour)

	m.Get(ctx, "sid").Set(ctx, &models.Identity{ID: 7, Email: "g@g.com"})
	store.down = true

	_, ok := m.Get(ctx, "sid").Current()
	assert.True(t, ok)
}

func TestForgetKeepsSubscribedSession(t *testing.T) {
	ctx := context.Background()
	m := NewManager(cache.NewMemoryStore(), time.Hour)

	c := m.Get(ctx, "sid")
	changes, cancel := c.Subscribe()
	defer cancel()

	c.Clear(ctx)
	m.Forget("sid")
	<-changes

	m.Get(ctx, "sid").Set(ctx, &models.Identity{ID: 3, Email: "c@c.com"})
	ev := <-changes
	require.NotNil(t, ev.Identity)
	assert.Equal(t, int64(3), ev.Identity.ID)
}

type flakyStore struct {
	cache.Store
	down bool
}

func (s *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.down {
		return nil, errors.New("connection refused")
	}
	return s.Store.Get(ctx, key)
}
