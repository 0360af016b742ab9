package meshcache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
)

// tempFileSeq disambiguates temp names when several writers target the same
// destination in one process.
var tempFileSeq atomic.Uint64

// ReadBinaryFile reads the whole file at path. Zero-length files return an
// empty buffer. Open, size-query and read failures are reported as distinct
// errors carrying the path.
func ReadBinaryFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open '%s': %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to query size of '%s': %w", path, err)
	}
	size := info.Size()
	if size == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("failed to read %d bytes from '%s': %w", size, path, err)
	}
	return buf, nil
}

// WriteBinaryFileAtomic writes data to path so that a concurrent reader of
// path only ever observes the old complete content or the new complete
// content. The data lands in a uniquely named temp sibling first and is
// renamed onto the destination; a failed rename gets one retry after
// removing the destination.
func WriteBinaryFileAtomic(path string, data []byte) error {
	if path == "" {
		return fmt.Errorf("cannot write to an empty destination path")
	}
	if len(data) == 0 {
		return fmt.Errorf("refusing to write zero bytes to '%s'", path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory '%s': %w", dir, err)
	}

	tmpPath := fmt.Sprintf("%s.%s-%d.tmp", path, uuid.NewString()[:8], tempFileSeq.Add(1))
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %d bytes to temp file '%s': %w", len(data), tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		// Some platforms refuse to rename over an existing file.
		os.Remove(path)
		if err := os.Rename(tmpPath, path); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to move temp file onto '%s': %w", path, err)
		}
	}
	return nil
}
