package meshcache

import (
	"fmt"

	"github.com/Panbok/nuri/engine/core"
)

/**
 * @brief The mesh cache front door. Owns the write-behind service and,
 * optionally, a source watcher that evicts entries when their source asset
 * changes on disk. Construct one per process and pass it to the importer.
 */
type MeshCache struct {
	config  CacheConfig
	writer  *WriteBehindService
	watcher *SourceWatcher
	metrics CacheMetrics
}

// NewMeshCache builds a cache from config and starts its worker. Call
// Shutdown when done.
func NewMeshCache(config CacheConfig) (*MeshCache, error) {
	core.SetLogLevel(config.LogLevel)

	mc := &MeshCache{
		config: config,
		writer: NewWriteBehindService(WriteBehindConfig{
			QueueCapacity: config.QueueCapacity,
			DrainTimeout:  config.DrainTimeout(),
		}),
	}

	if config.WatchSources {
		watcher, err := NewSourceWatcher()
		if err != nil {
			mc.writer.Shutdown()
			return nil, fmt.Errorf("failed to start mesh cache source watcher: %w", err)
		}
		mc.watcher = watcher
	}

	core.LogInfo("Mesh cache initialized (queue capacity %d, drain timeout %s).",
		mc.writer.QueueCapacity(), mc.writer.drainTimeout)

	return mc, nil
}

// Lookup revalidates and loads the cache entry for sourcePath under opts.
// A hit requires the source's current size and mtime to match the values
// recorded in the cache header, and the header's provenance hashes to match
// the freshly computed key. Every failure mode is a miss, never an error.
func (mc *MeshCache) Lookup(sourcePath string, opts *MeshImportOptions) (*MeshCachePayload, bool) {
	key, err := BuildMeshCacheKey(sourcePath, opts)
	if err != nil {
		mc.metrics.misses.Add(1)
		return nil, false
	}

	fp := QueryMeshSourceFingerprint(key.NormalizedSourcePath)
	if !fp.Exists {
		mc.metrics.misses.Add(1)
		return nil, false
	}

	data, err := ReadBinaryFile(key.CachePath)
	if err != nil {
		mc.metrics.misses.Add(1)
		return nil, false
	}

	parsed, err := ParseMeshCacheFile(data)
	if err != nil {
		core.LogWarn("ignoring unreadable mesh cache file '%s': %v", key.CachePath, err)
		mc.metrics.misses.Add(1)
		return nil, false
	}

	header := &parsed.Header
	if header.SourcePathHash != key.SourcePathHash ||
		header.ImportOptionsHash != key.OptionsHash ||
		header.SourceSizeBytes != fp.SizeBytes ||
		header.SourceMtimeNs != fp.MtimeNs {
		mc.metrics.misses.Add(1)
		return nil, false
	}

	payload, err := parsed.Payload()
	if err != nil {
		core.LogWarn("ignoring malformed mesh cache file '%s': %v", key.CachePath, err)
		mc.metrics.misses.Add(1)
		return nil, false
	}

	mc.metrics.hits.Add(1)
	return payload, true
}

// Store serializes payload and hands it to the write-behind service. The
// returned key is valid immediately; the file lands on disk asynchronously
// and may be lost under overload or shutdown.
func (mc *MeshCache) Store(sourcePath string, opts *MeshImportOptions, payload *MeshCachePayload) (*MeshCacheKey, error) {
	key, err := BuildMeshCacheKey(sourcePath, opts)
	if err != nil {
		return nil, err
	}

	fp := QueryMeshSourceFingerprint(key.NormalizedSourcePath)
	data := SerializeMeshCache(payload, key, fp)
	mc.writer.Enqueue(key.CachePath, data)
	mc.metrics.stores.Add(1)

	if mc.watcher != nil {
		if err := mc.watcher.Watch(key); err != nil {
			core.LogWarn("failed to watch mesh source '%s': %v", key.NormalizedSourcePath, err)
		}
	}

	return key, nil
}

// Metrics returns a snapshot of the cache counters.
func (mc *MeshCache) Metrics() CacheMetricsSnapshot {
	snapshot := mc.metrics.Snapshot()
	if mc.watcher != nil {
		snapshot.Invalidations = mc.watcher.Invalidations()
	}
	return snapshot
}

// Writer exposes the underlying write-behind service, for callers that
// persist pre-serialized containers themselves.
func (mc *MeshCache) Writer() *WriteBehindService {
	return mc.writer
}

// Shutdown stops the watcher, then drains and stops the write-behind
// service within its configured bound.
func (mc *MeshCache) Shutdown() error {
	if mc.watcher != nil {
		mc.watcher.Close()
	}
	return mc.writer.Shutdown()
}
