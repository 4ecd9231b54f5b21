package tzlookup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-clusters/internal/observability"
)

// --- mock for cache tests ---

type countingLocator struct {
	mu     sync.Mutex
	calls  int
	offset time.Duration
	err    error
}

func (m *countingLocator) StandardOffset(_ context.Context, _, _ float64) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.offset, m.err
}

func (m *countingLocator) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- CachedLocator tests ---

func TestCachedLocator_CacheHit(t *testing.T) {
	inner := &countingLocator{offset: -6 * time.Hour}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedLocator(inner, 10, metrics)

	o1, err := cached.StandardOffset(context.Background(), 35.0, -97.0)
	require.NoError(t, err)
	o2, err := cached.StandardOffset(context.Background(), 35.00001, -97.00001)
	require.NoError(t, err)

	assert.Equal(t, -6*time.Hour, o1)
	assert.Equal(t, o1, o2)
	assert.Equal(t, 1, inner.count(), "should only call inner once")
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.TZLookupCache.WithLabelValues("memory", "hit")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.TZLookupCache.WithLabelValues("memory", "miss")), 0)
}

func TestCachedLocator_ErrorsNotCached(t *testing.T) {
	inner := &countingLocator{err: errors.New("boom")}
	cached := NewCachedLocator(inner, 10, nil)

	_, err := cached.StandardOffset(context.Background(), 35, -97)
	require.Error(t, err)
	_, err = cached.StandardOffset(context.Background(), 35, -97)
	require.Error(t, err)

	assert.Equal(t, 2, inner.count())
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", time.Hour)
	c.put("b", 2*time.Hour)
	_, _ = c.get("a") // a is now most recent
	c.put("c", 3*time.Hour)

	_, ok := c.get("b")
	assert.False(t, ok, "b should have been evicted")
	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, time.Hour, v)
	assert.Equal(t, 2, c.len())
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", time.Hour)
	c.put("a", 2*time.Hour)

	v, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, 2*time.Hour, v)
	assert.Equal(t, 1, c.len())
}

// --- PersistentLocator tests ---

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPersistentLocator_SharedAcrossInstances(t *testing.T) {
	db := openTestDB(t)
	inner := &countingLocator{offset: -5 * time.Hour}
	metrics := observability.NewMetricsForTesting()

	first := NewPersistentLocator(inner, db, testLogger(), metrics)
	o, err := first.StandardOffset(context.Background(), 25.7, -80.2)
	require.NoError(t, err)
	assert.Equal(t, -5*time.Hour, o)

	// A new wrapper over the same store, as after a restart.
	second := NewPersistentLocator(inner, db, testLogger(), metrics)
	o, err = second.StandardOffset(context.Background(), 25.7, -80.2)
	require.NoError(t, err)
	assert.Equal(t, -5*time.Hour, o)

	assert.Equal(t, 1, inner.count())
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.TZLookupCache.WithLabelValues("disk", "hit")), 0)
}

func TestPersistentLocator_ErrorsNotStored(t *testing.T) {
	db := openTestDB(t)
	inner := &countingLocator{err: ErrNoZone}
	p := NewPersistentLocator(inner, db, testLogger(), nil)

	_, err := p.StandardOffset(context.Background(), 0, -140)
	require.ErrorIs(t, err, ErrNoZone)
	_, err = p.StandardOffset(context.Background(), 0, -140)
	require.ErrorIs(t, err, ErrNoZone)
	assert.Equal(t, 2, inner.count())
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenStore(dir)
	require.NoError(t, err)

	inner := &countingLocator{offset: -7 * time.Hour}
	_, err = NewPersistentLocator(inner, db, testLogger(), nil).StandardOffset(context.Background(), 39.7, -105)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenStore(dir)
	require.NoError(t, err)
	defer db.Close()
	o, err := NewPersistentLocator(inner, db, testLogger(), nil).StandardOffset(context.Background(), 39.7, -105)
	require.NoError(t, err)
	assert.Equal(t, -7*time.Hour, o)
	assert.Equal(t, 1, inner.count())
}
