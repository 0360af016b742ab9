package meshcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func newTestCache(t *testing.T) *MeshCache {
	t.Helper()
	mc, err := NewMeshCache(DefaultCacheConfig())
	require.NoError(t, err)
	t.Cleanup(func() { mc.Shutdown() })
	return mc
}

func TestMeshCacheStoreThenLookupHits(t *testing.T) {
	mc := newTestCache(t)
	source := writeSource(t, t.TempDir(), "models/car.obj", 2048)
	opts := &MeshImportOptions{Triangulate: true, GenerateNormals: true}

	key, err := mc.Store(source, opts, testPayload(t))
	require.NoError(t, err)

	// The write lands asynchronously.
	require.Eventually(t, func() bool {
		_, ok := mc.Lookup(source, opts)
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	payload, ok := mc.Lookup(source, opts)
	require.True(t, ok)
	assert.Equal(t, testPayload(t).VertexData, payload.VertexData)

	_, err = os.Stat(key.CachePath)
	require.NoError(t, err)

	snapshot := mc.Metrics()
	assert.NotZero(t, snapshot.Hits)
	assert.Equal(t, uint64(1), snapshot.Stores)
}

func TestMeshCacheLookupMissesWithoutStore(t *testing.T) {
	mc := newTestCache(t)
	source := writeSource(t, t.TempDir(), "models/car.obj", 2048)

	_, ok := mc.Lookup(source, &MeshImportOptions{Triangulate: true})
	assert.False(t, ok)
	assert.Equal(t, uint64(1), mc.Metrics().Misses)
}

func TestMeshCacheLookupMissesWhenSourceMissing(t *testing.T) {
	mc := newTestCache(t)

	_, ok := mc.Lookup(filepath.Join(t.TempDir(), "gone.obj"), &MeshImportOptions{})
	assert.False(t, ok)
}

func TestMeshCacheLookupMissesAfterSourceChange(t *testing.T) {
	mc := newTestCache(t)
	dir := t.TempDir()
	source := writeSource(t, dir, "models/car.obj", 2048)
	opts := &MeshImportOptions{Triangulate: true}

	_, err := mc.Store(source, opts, testPayload(t))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := mc.Lookup(source, opts)
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	// Grow the source; both size and mtime now disagree with the header.
	require.NoError(t, os.WriteFile(source, make([]byte, 4096), 0o644))

	_, ok := mc.Lookup(source, opts)
	assert.False(t, ok)
}

func TestMeshCacheLookupMissesAfterMtimeChange(t *testing.T) {
	mc := newTestCache(t)
	source := writeSource(t, t.TempDir(), "models/car.obj", 2048)
	opts := &MeshImportOptions{Triangulate: true}

	_, err := mc.Store(source, opts, testPayload(t))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := mc.Lookup(source, opts)
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	// Same size, different mtime.
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(source, later, later))

	_, ok := mc.Lookup(source, opts)
	assert.False(t, ok)
}

func TestMeshCacheLookupMissesForDifferentOptions(t *testing.T) {
	mc := newTestCache(t)
	source := writeSource(t, t.TempDir(), "models/car.obj", 2048)

	_, err := mc.Store(source, &MeshImportOptions{Triangulate: true}, testPayload(t))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := mc.Lookup(source, &MeshImportOptions{Triangulate: true})
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	// Different options derive a different cache file entirely.
	_, ok := mc.Lookup(source, &MeshImportOptions{Triangulate: true, GenerateNormals: true})
	assert.False(t, ok)
}

func TestMeshCacheLookupRejectsCorruptedFile(t *testing.T) {
	mc := newTestCache(t)
	source := writeSource(t, t.TempDir(), "models/car.obj", 2048)
	opts := &MeshImportOptions{Triangulate: true}

	key, err := mc.Store(source, opts, testPayload(t))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := mc.Lookup(source, opts)
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	data, err := os.ReadFile(key.CachePath)
	require.NoError(t, err)
	data[0] = 'X'
	require.NoError(t, os.WriteFile(key.CachePath, data, 0o644))

	_, ok := mc.Lookup(source, opts)
	assert.False(t, ok)
}

func TestNewMeshCacheZeroConfig(t *testing.T) {
	// A zero config falls back to the defaults and leaves the log level
	// untouched instead of warning about an empty level name.
	mc, err := NewMeshCache(CacheConfig{})
	require.NoError(t, err)
	defer mc.Shutdown()

	assert.Equal(t, DefaultWriteQueueCapacity, mc.writer.QueueCapacity())
}
