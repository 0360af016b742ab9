package meshcache

import (
	"encoding/binary"
	"fmt"
	gomath "math"
	"path/filepath"
	"strings"
)

const (
	/** @brief The hidden directory, sibling to each source asset, that holds its cache files. */
	CacheDirName = ".nuri_mesh_cache"
	/** @brief The extension of cache container files. */
	CacheFileExtension = ".nmesh"
	/** @brief Stem substituted when a source filename has none. */
	cachePlaceholderStem = "unnamed"
)

// meshCacheContentVersion is mixed into the options hash ahead of every
// field. Bump it whenever the meaning of cached bytes changes, so every
// previously written cache file stops matching.
const meshCacheContentVersion uint32 = 1

// FNV-1a, 64-bit.
const (
	fnvOffsetBasis uint64 = 0xcbf29ce484222325
	fnvPrime       uint64 = 0x100000001b3
)

/**
 * @brief Options controlling mesh import. Hashed into the cache identity;
 * any field change produces a different cache file.
 */
type MeshImportOptions struct {
	Triangulate           bool
	GenerateNormals       bool
	GenerateTangents      bool
	FlipUVs               bool
	JoinIdenticalVertices bool
	Optimize              bool
	GenerateLods          bool
	/** @brief Number of LODs to build beyond LOD 0. */
	LodCount uint32
	/** @brief Per-LOD triangle ratios relative to LOD 0. */
	LodTriangleRatios []float32
	/** @brief Simplification error target for LOD generation. */
	LodTargetError float32
}

/**
 * @brief The deterministic identity of a cached mesh artifact. A value,
 * produced on demand by BuildMeshCacheKey; CachePath is derived from the
 * other fields and is never set independently.
 */
type MeshCacheKey struct {
	NormalizedSourcePath string
	CachePath            string
	SourcePathHash       uint64
	OptionsHash          uint64
}

// NormalizeMeshSourcePath resolves a source path to its canonical form:
// symlinks and relative segments resolved where the filesystem allows it,
// falling back to absolute resolution, then to lexical cleaning. It never
// fails, and normalizing an already-normalized path returns the same value.
func NormalizeMeshSourcePath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			return resolved
		}
		return abs
	}
	return filepath.Clean(path)
}

// HashMeshImportOptions produces a 64-bit FNV-1a hash over every option
// field in a fixed order. Two logically equal option values always hash
// identically across runs and processes.
func HashMeshImportOptions(opts *MeshImportOptions) uint64 {
	h := fnvOffsetBasis
	h = fnvMixU32(h, meshCacheContentVersion)
	h = fnvMixBool(h, opts.Triangulate)
	h = fnvMixBool(h, opts.GenerateNormals)
	h = fnvMixBool(h, opts.GenerateTangents)
	h = fnvMixBool(h, opts.FlipUVs)
	h = fnvMixBool(h, opts.JoinIdenticalVertices)
	h = fnvMixBool(h, opts.Optimize)
	h = fnvMixBool(h, opts.GenerateLods)
	h = fnvMixU32(h, opts.LodCount)
	h = fnvMixU32(h, uint32(len(opts.LodTriangleRatios)))
	for _, ratio := range opts.LodTriangleRatios {
		h = fnvMixU32(h, gomath.Float32bits(ratio))
	}
	h = fnvMixU32(h, gomath.Float32bits(opts.LodTargetError))
	return h
}

// BuildMeshCacheKey derives the cache identity and on-disk cache path for a
// source asset and its import options. It never touches the filesystem
// beyond path normalization.
func BuildMeshCacheKey(sourcePath string, opts *MeshImportOptions) (*MeshCacheKey, error) {
	if sourcePath == "" {
		return nil, fmt.Errorf("cannot build a mesh cache key for an empty source path")
	}
	normalized := NormalizeMeshSourcePath(sourcePath)
	portable := filepath.ToSlash(normalized)
	if portable == "" {
		return nil, fmt.Errorf("source path '%s' normalized to an empty path", sourcePath)
	}

	pathHash := fnvHashBytes([]byte(portable))
	optionsHash := HashMeshImportOptions(opts)

	base := filepath.Base(normalized)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = cachePlaceholderStem
	}

	cacheDir := filepath.Join(filepath.Dir(normalized), CacheDirName)
	filename := fmt.Sprintf("%s_%016x_%016x_v%d%s",
		stem, pathHash, optionsHash, MeshFormatMajorVersion, CacheFileExtension)

	return &MeshCacheKey{
		NormalizedSourcePath: normalized,
		CachePath:            filepath.Join(cacheDir, filename),
		SourcePathHash:       pathHash,
		OptionsHash:          optionsHash,
	}, nil
}

func fnvHashBytes(data []byte) uint64 {
	h := fnvOffsetBasis
	for _, b := range data {
		h ^= uint64(b)
		h *= fnvPrime
	}
	return h
}

func fnvMixByte(h uint64, b byte) uint64 {
	h ^= uint64(b)
	h *= fnvPrime
	return h
}

func fnvMixBool(h uint64, v bool) uint64 {
	if v {
		return fnvMixByte(h, 1)
	}
	return fnvMixByte(h, 0)
}

func fnvMixU32(h uint64, v uint32) uint64 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	for _, b := range buf {
		h = fnvMixByte(h, b)
	}
	return h
}
