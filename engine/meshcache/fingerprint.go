package meshcache

import "os"

/**
 * @brief A point-in-time observation of a source asset on disk. Not
 * persisted; recomputed on every validity check.
 */
type MeshSourceFingerprint struct {
	Exists    bool
	SizeBytes uint64
	MtimeNs   int64
}

// QueryMeshSourceFingerprint stats the source asset. A missing path, a stat
// failure, or a non-regular file all yield the zero fingerprint; this is a
// best-effort probe and never reports an error.
func QueryMeshSourceFingerprint(path string) MeshSourceFingerprint {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return MeshSourceFingerprint{}
	}
	return MeshSourceFingerprint{
		Exists:    true,
		SizeBytes: uint64(info.Size()),
		MtimeNs:   info.ModTime().UnixNano(),
	}
}
