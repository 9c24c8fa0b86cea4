package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rewired-gh/mandinetra/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns every backend that can run in this environment.
// Redis is only exercised when MANDINETRA_TEST_REDIS_ADDR is set.
func backends(t *testing.T) map[string]Backend {
	t.Helper()
	ctx := context.Background()

	file, err := NewFileStore(t.TempDir(), 0o600, 0o755)
	require.NoError(t, err)

	sqlite, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)

	out := map[string]Backend{
		"memory": NewMemoryStore(),
		"file":   file,
		"sqlite": sqlite,
	}

	if addr := os.Getenv("MANDINETRA_TEST_REDIS_ADDR"); addr != "" {
		r, err := NewRedisStore(ctx, addr, 0, "mandinetra-test:"+t.Name()+":")
		require.NoError(t, err)
		out["redis"] = r
	}

	for _, b := range out {
		b := b
		t.Cleanup(func() { _ = b.Close() })
	}
	return out
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Get(ctx, "buyerFavorites")
			require.NoError(t, err)
			assert.False(t, ok, "missing namespace must report absence")

			require.NoError(t, store.Set(ctx, "buyerFavorites", `[{"id":1}]`))
			v, ok, err := store.Get(ctx, "buyerFavorites")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `[{"id":1}]`, v)

			require.NoError(t, store.Set(ctx, "buyerFavorites", `[]`))
			v, _, err = store.Get(ctx, "buyerFavorites")
			require.NoError(t, err)
			assert.Equal(t, `[]`, v, "set replaces the whole value")

			_, ok, err = store.Get(ctx, "priceAlerts")
			require.NoError(t, err)
			assert.False(t, ok, "namespaces are independent")
		})
	}
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s1, err := NewFileStore(dir, 0o600, 0o755)
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "priceAlerts", `[1,2,3]`))

	// A stale temp file from a crashed write must not leak into reads.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "priceAlerts.json.tmp"), []byte("garbage"), 0o600))

	s2, err := NewFileStore(dir, 0o600, 0o755)
	require.NoError(t, err)
	v, ok, err := s2.Get(ctx, "priceAlerts")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[1,2,3]`, v)

	_, err = os.Stat(filepath.Join(dir, "priceAlerts.json.tmp"))
	assert.True(t, os.IsNotExist(err), "stale temp file should be removed on open")
}

func TestFileStore_SanitizesNamespace(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewFileStore(dir, 0o600, 0o755)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "../escape", "x"))

	_, err = os.Stat(filepath.Join(dir, ".._escape.json"))
	assert.NoError(t, err)
}

func TestFileStore_EmptyDirUsesTmpDir(t *testing.T) {
	s, err := NewFileStore("", 0o600, 0o755)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(os.TempDir(), "mandinetra"), s.Dir())
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "kv.db")

	s1, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "userSettings", `{"theme":"dark"}`))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer s2.Close()

	v, ok, err := s2.Get(ctx, "userSettings")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"theme":"dark"}`, v)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, config.StorageConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, b)

	b, err = Open(ctx, config.StorageConfig{Backend: "file", DataDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, b)

	_, err = Open(ctx, config.StorageConfig{Backend: "etcd"})
	assert.Error(t, err)
}
