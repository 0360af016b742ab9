package meshcache

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/Panbok/nuri/engine/core"
)

/**
 * @brief Watches registered source assets and evicts their cache files when
 * the source is written, renamed or removed. Eviction is best effort: the
 * next Lookup would reject a stale entry anyway via the fingerprint check,
 * the watcher just reclaims the disk space early.
 */
type SourceWatcher struct {
	mutex sync.Mutex
	// normalized source path -> cache paths derived from it (one per option set)
	watched map[string]map[string]struct{}

	fsnotify      *fsnotify.Watcher
	done          chan struct{}
	isClosed      bool
	invalidations atomic.Uint64
}

func NewSourceWatcher() (*SourceWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	sw := &SourceWatcher{
		watched:  make(map[string]map[string]struct{}),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}

	go sw.start()

	return sw, nil
}

// Watch registers the key's source path; any later change to it evicts the
// key's cache file. Watching the same source for several option sets
// accumulates their cache paths under one filesystem watch.
func (sw *SourceWatcher) Watch(key *MeshCacheKey) error {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	if sw.isClosed {
		return nil
	}

	// Always re-add: fsnotify silently drops a watch when the file is
	// removed or renamed, and Add on an already watched path is a no-op.
	if err := sw.fsnotify.Add(key.NormalizedSourcePath); err != nil {
		return err
	}

	paths, known := sw.watched[key.NormalizedSourcePath]
	if !known {
		paths = make(map[string]struct{})
		sw.watched[key.NormalizedSourcePath] = paths
	}
	paths[key.CachePath] = struct{}{}
	return nil
}

// Invalidations reports how many cache files the watcher has evicted.
func (sw *SourceWatcher) Invalidations() uint64 {
	return sw.invalidations.Load()
}

// Close stops the event loop and the underlying filesystem watcher.
func (sw *SourceWatcher) Close() {
	sw.mutex.Lock()
	if sw.isClosed {
		sw.mutex.Unlock()
		return
	}
	sw.isClosed = true
	sw.mutex.Unlock()

	close(sw.done)
	sw.fsnotify.Close()
}

func (sw *SourceWatcher) start() {
	for {
		select {
		case e, ok := <-sw.fsnotify.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				sw.evict(e.Name)
			}
		case err, ok := <-sw.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("mesh cache source watcher: %v", err)
		case <-sw.done:
			return
		}
	}
}

func (sw *SourceWatcher) evict(sourcePath string) {
	sw.mutex.Lock()
	paths := sw.watched[sourcePath]
	cachePaths := make([]string, 0, len(paths))
	for p := range paths {
		cachePaths = append(cachePaths, p)
	}
	sw.mutex.Unlock()

	for _, cachePath := range cachePaths {
		if err := os.Remove(cachePath); err != nil {
			if !os.IsNotExist(err) {
				core.LogWarn("failed to evict stale mesh cache file '%s': %v", cachePath, err)
			}
			continue
		}
		sw.invalidations.Add(1)
		core.LogDebug("evicted stale mesh cache file '%s' (source '%s' changed)", cachePath, sourcePath)
	}
}
