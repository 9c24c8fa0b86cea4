package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rewired-gh/mandinetra/internal/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Price  int    `json:"price"`
	Active bool   `json:"active"`
}

func recordOptions(namespace string, capacity int, byName bool) Options[testRecord] {
	opts := Options[testRecord]{
		Namespace: namespace,
		Capacity:  capacity,
		ID:        func(r testRecord) int64 { return r.ID },
		SetID:     func(r *testRecord, id int64) { r.ID = id },
		Bool: func(r *testRecord, field string) *bool {
			if field == "active" {
				return &r.Active
			}
			return nil
		},
	}
	if byName {
		opts.Key = func(r testRecord) string { return r.Name }
	}
	return opts
}

// fixedClock always returns the same instant so id monotonicity is exercised.
func fixedClock() time.Time {
	return time.UnixMilli(1_700_000_000_000)
}

func TestCollection_AddDeduplicatesByKey(t *testing.T) {
	ctx := context.Background()
	c := New(kv.NewMemoryStore(), recordOptions("favorites", 5, true))

	_, err := c.Add(ctx, testRecord{Name: "wheat|pune|pune", Price: 2000})
	require.NoError(t, err)
	_, err = c.Add(ctx, testRecord{Name: "rice|pune|pune", Price: 3000})
	require.NoError(t, err)
	_, err = c.Add(ctx, testRecord{Name: "wheat|pune|pune", Price: 2250})
	require.NoError(t, err)

	items := c.List()
	require.Len(t, items, 2)
	assert.Equal(t, "wheat|pune|pune", items[0].Name, "re-added record is positioned first")
	assert.Equal(t, 2250, items[0].Price, "re-added record reflects the second value")
	assert.Equal(t, "rice|pune|pune", items[1].Name)
}

func TestCollection_AddTruncatesToCapacity(t *testing.T) {
	ctx := context.Background()
	c := New(kv.NewMemoryStore(), recordOptions("favorites", 5, true))

	for i := 0; i < 6; i++ {
		_, err := c.Add(ctx, testRecord{Name: fmt.Sprintf("r%d", i)})
		require.NoError(t, err)
	}

	items := c.List()
	require.Len(t, items, 5)
	for i, it := range items {
		assert.Equal(t, fmt.Sprintf("r%d", 5-i), it.Name)
	}
	for _, it := range items {
		assert.NotEqual(t, "r0", it.Name, "oldest record should be evicted")
	}
}

func TestCollection_IDsStrictlyIncrease(t *testing.T) {
	ctx := context.Background()
	opts := recordOptions("alerts", 0, false)
	opts.Now = fixedClock
	c := New(kv.NewMemoryStore(), opts)

	a, err := c.Add(ctx, testRecord{Name: "a"})
	require.NoError(t, err)
	b, err := c.Add(ctx, testRecord{Name: "b"})
	require.NoError(t, err)

	assert.Equal(t, int64(1_700_000_000_000), a.ID)
	assert.Equal(t, a.ID+1, b.ID)
	assert.Equal(t, 2, c.Len(), "records unique by id are never merged")
}

func TestCollection_RoundTripAcrossRestart(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()

	c1 := New(store, recordOptions("favorites", 5, true))
	rec, err := c1.Add(ctx, testRecord{Name: "wheat", Price: 2250})
	require.NoError(t, err)

	c2 := New(store, recordOptions("favorites", 5, true))
	require.NoError(t, c2.Load(ctx))

	got, ok := c2.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, rec, got)
}

func TestCollection_LoadMalformedYieldsEmpty(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "favorites", "{not json"))

	c := New(store, recordOptions("favorites", 5, true))
	require.NoError(t, c.Load(ctx))
	assert.Empty(t, c.List())

	// The next write heals the namespace.
	_, err := c.Add(ctx, testRecord{Name: "wheat"})
	require.NoError(t, err)
	raw, _, _ := store.Get(ctx, "favorites")
	assert.Contains(t, raw, `"name":"wheat"`)
}

func TestCollection_LoadMissingYieldsEmpty(t *testing.T) {
	c := New(kv.NewMemoryStore(), recordOptions("favorites", 5, true))
	require.NoError(t, c.Load(context.Background()))
	assert.NotNil(t, c.List())
	assert.Empty(t, c.List())
}

func TestCollection_RemoveAndToggle(t *testing.T) {
	ctx := context.Background()
	c := New(kv.NewMemoryStore(), recordOptions("alerts", 0, false))

	rec, err := c.Add(ctx, testRecord{Name: "a", Active: true})
	require.NoError(t, err)

	found, err := c.Toggle(ctx, rec.ID, "active")
	require.NoError(t, err)
	assert.True(t, found)
	got, _ := c.Get(rec.ID)
	assert.False(t, got.Active)

	found, err = c.Toggle(ctx, rec.ID+999, "active")
	require.NoError(t, err)
	assert.False(t, found, "toggle of a missing id is a no-op")
	assert.Equal(t, 1, c.Len())

	_, err = c.Toggle(ctx, rec.ID, "triggered")
	assert.True(t, errors.Is(err, ErrUnknownField))

	found, err = c.Remove(ctx, rec.ID+999)
	require.NoError(t, err)
	assert.False(t, found, "remove of a missing id is a no-op")

	found, err = c.Remove(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 0, c.Len())
}

// failingStore fails every Set after the first n.
type failingStore struct {
	*kv.MemoryStore
	mu      sync.Mutex
	allowed int
}

func (f *failingStore) Set(ctx context.Context, ns, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.allowed <= 0 {
		return errors.New("disk full")
	}
	f.allowed--
	return f.MemoryStore.Set(ctx, ns, value)
}

func TestCollection_FailedWriteLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryStore: kv.NewMemoryStore(), allowed: 1}
	c := New[testRecord](store, recordOptions("alerts", 0, false))

	rec, err := c.Add(ctx, testRecord{Name: "a", Active: true})
	require.NoError(t, err)

	_, err = c.Toggle(ctx, rec.ID, "active")
	require.Error(t, err)

	got, _ := c.Get(rec.ID)
	assert.True(t, got.Active, "in-memory state must match durable state after a failed write")

	_, err = c.Add(ctx, testRecord{Name: "b"})
	require.Error(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestCollection_ValidateRejects(t *testing.T) {
	opts := recordOptions("alerts", 0, false)
	opts.Validate = func(r *testRecord) error {
		if r.Name == "" {
			return errors.New("name required")
		}
		return nil
	}
	c := New(kv.NewMemoryStore(), opts)

	_, err := c.Add(context.Background(), testRecord{})
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestCollection_ConcurrentAddsAreSerialized(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()

	// Two collections over the same namespace simulate two engine instances.
	c1 := New(store, recordOptions("alerts", 0, false))
	c2 := New(store, recordOptions("alerts", 0, false))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := c1.Add(ctx, testRecord{Name: fmt.Sprintf("c1-%d", i)})
			assert.NoError(t, err)
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := c2.Add(ctx, testRecord{Name: fmt.Sprintf("c2-%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	fresh := New(store, recordOptions("alerts", 0, false))
	require.NoError(t, fresh.Load(ctx))
	assert.Equal(t, 100, fresh.Len(), "no add may clobber another")

	seen := make(map[int64]bool)
	for _, r := range fresh.List() {
		assert.False(t, seen[r.ID], "duplicate id %d", r.ID)
		seen[r.ID] = true
	}
}

func TestCollection_RemoveIf(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	c := New(store, recordOptions("digests", 0, true))

	for _, name := range []string{"daily|1", "weekly|2", "daily|3"} {
		_, err := c.Add(ctx, testRecord{Name: name})
		require.NoError(t, err)
	}

	n, err := c.RemoveIf(ctx, func(r testRecord) bool { return r.Name[:5] == "daily" })
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	reloaded := New(store, recordOptions("digests", 0, true))
	require.NoError(t, reloaded.Load(ctx))
	items := reloaded.List()
	require.Len(t, items, 1)
	assert.Equal(t, "weekly|2", items[0].Name)

	n, err = c.RemoveIf(ctx, func(testRecord) bool { return false })
	require.NoError(t, err)
	assert.Zero(t, n)
}
