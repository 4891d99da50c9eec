package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveBackend(t *testing.T) {
	m := New()

	m.ObserveBackend("/canchas", 200, 10*time.Millisecond)
	m.ObserveBackend("/canchas", 200, 20*time.Millisecond)
	m.ObserveBackend("/horarios", 0, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BackendRequests.WithLabelValues("/canchas", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendRequests.WithLabelValues("/horarios", "0")))
}

func TestCacheHit(t *testing.T) {
	m := New()

	m.CacheHit("availability", true)
	m.CacheHit("availability", false)
	m.CacheHit("availability", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("availability", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("availability", "miss")))
}

func TestRegistryGathers(t *testing.T) {
	m := New()
	m.BookingsCreated.Inc()
	m.ObserveHTTP("GET", "/health", 200, time.Millisecond)

	families, err := m.Registry.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}
