package meshcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceWatcherEvictsOnSourceWrite(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "car.obj", 128)

	key, err := BuildMeshCacheKey(source, &MeshImportOptions{Triangulate: true})
	require.NoError(t, err)
	require.NoError(t, WriteBinaryFileAtomic(key.CachePath, []byte("cached")))

	watcher, err := NewSourceWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	require.NoError(t, watcher.Watch(key))

	require.NoError(t, os.WriteFile(source, []byte("changed"), 0o644))

	require.Eventually(t, func() bool {
		_, err := os.Stat(key.CachePath)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond, "cache file should be evicted after source change")
	assert.Equal(t, uint64(1), watcher.Invalidations())
}

func TestSourceWatcherTracksMultipleOptionSets(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "car.obj", 128)

	keyA, err := BuildMeshCacheKey(source, &MeshImportOptions{Triangulate: true})
	require.NoError(t, err)
	keyB, err := BuildMeshCacheKey(source, &MeshImportOptions{Triangulate: true, GenerateNormals: true})
	require.NoError(t, err)
	require.NoError(t, WriteBinaryFileAtomic(keyA.CachePath, []byte("a")))
	require.NoError(t, WriteBinaryFileAtomic(keyB.CachePath, []byte("b")))

	watcher, err := NewSourceWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	require.NoError(t, watcher.Watch(keyA))
	require.NoError(t, watcher.Watch(keyB))

	require.NoError(t, os.WriteFile(source, []byte("changed"), 0o644))

	require.Eventually(t, func() bool {
		_, errA := os.Stat(keyA.CachePath)
		_, errB := os.Stat(keyB.CachePath)
		return os.IsNotExist(errA) && os.IsNotExist(errB)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSourceWatcherReWatchAfterRemove(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "car.obj", 128)

	key, err := BuildMeshCacheKey(source, &MeshImportOptions{Triangulate: true})
	require.NoError(t, err)
	require.NoError(t, WriteBinaryFileAtomic(key.CachePath, []byte("cached")))

	watcher, err := NewSourceWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	require.NoError(t, watcher.Watch(key))

	// Removing the source evicts the cache and drops the underlying watch.
	require.NoError(t, os.Remove(source))
	require.Eventually(t, func() bool {
		_, err := os.Stat(key.CachePath)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond, "cache file should be evicted after source removal")

	// Recreate the source and cache it again; Watch must restore the watch
	// so a later write still evicts.
	require.NoError(t, os.WriteFile(source, []byte("recreated"), 0o644))
	require.NoError(t, WriteBinaryFileAtomic(key.CachePath, []byte("cached again")))
	require.NoError(t, watcher.Watch(key))

	require.NoError(t, os.WriteFile(source, []byte("changed again"), 0o644))
	require.Eventually(t, func() bool {
		_, err := os.Stat(key.CachePath)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond, "cache file should be evicted after source recreation and change")
	assert.Equal(t, uint64(2), watcher.Invalidations())
}

func TestSourceWatcherCloseIsIdempotent(t *testing.T) {
	watcher, err := NewSourceWatcher()
	require.NoError(t, err)
	watcher.Close()
	watcher.Close()

	// Watch after close is a quiet no-op.
	key, err := BuildMeshCacheKey(filepath.Join(t.TempDir(), "car.obj"), &MeshImportOptions{})
	require.NoError(t, err)
	assert.NoError(t, watcher.Watch(key))
}
