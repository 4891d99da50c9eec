package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestTTLFreshnessWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)}
	c := NewTTL[string, int](5*time.Minute, clock.Now)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	clock.Advance(4*time.Minute + 59*time.Second)
	_, ok = c.Get("a")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestTTLUpdateDoesNotExtendFreshness(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)}
	c := NewTTL[string, []int](time.Minute, clock.Now)

	assert.False(t, c.Update("missing", func(v []int) []int { return v }))

	c.Set("k", []int{1})
	clock.Advance(30 * time.Second)
	assert.True(t, c.Update("k", func(v []int) []int { return append(v, 2) }))

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, v)

	clock.Advance(30 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestTTLDropsStaleEntries(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)}
	c := NewTTL[string, int](time.Minute, clock.Now)

	for _, day := range []string{"2025-09-01", "2025-09-02", "2025-09-03"} {
		c.Set(day, 1)
	}
	assert.Equal(t, 3, c.Len())

	clock.Advance(time.Minute)
	_, ok := c.Get("2025-09-01")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())

	c.Set("2025-09-04", 1)
	assert.Equal(t, 1, c.Len())

	_, ok = c.Get("2025-09-04")
	assert.True(t, ok)
}

func TestTTLZeroKeepsNothing(t *testing.T) {
	c := NewTTL[string, int](0, nil)
	c.Set("a", 1)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLDeleteFunc(t *testing.T) {
	c := NewTTL[int, string](time.Minute, nil)
	c.Set(1, "a")
	c.Set(2, "b")
	c.Set(3, "c")

	c.DeleteFunc(func(k int) bool { return k%2 == 1 })

	_, ok := c.Get(1)
	assert.False(t, ok)
	_, ok = c.Get(2)
	assert.True(t, ok)

	c.Clear()
	_, ok = c.Get(2)
	assert.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)}
	s := NewMemoryStore()
	s.now = clock.Now

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.Set(ctx, "session", []byte(`{"id":1}`), time.Hour))
	got, err := s.Get(ctx, "session")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(got))

	clock.Advance(time.Hour)
	_, err = s.Get(ctx, "session")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.Set(ctx, "forever", []byte("x"), 0))
	require.NoError(t, s.Delete(ctx, "forever"))
	_, err = s.Get(ctx, "forever")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestValkeyStore(t *testing.T) {
	addr := os.Getenv("VALKEY_TEST_ADDR")
	if addr == "" {
		t.Skip("VALKEY_TEST_ADDR not set")
	}

	s, err := NewValkeyStore(ValkeyConfig{Addr: addr})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	key := "canchita:test:" + time.Now().Format(time.RFC3339Nano)

	require.NoError(t, s.Set(ctx, key, []byte("v"), time.Minute))
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrMiss)
}
