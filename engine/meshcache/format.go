package meshcache

import (
	"encoding/binary"
	"fmt"
	gomath "math"

	"github.com/Panbok/nuri/engine/math"
)

/** @brief A magic number indicating the file as a nuri mesh cache file. */
const MeshCacheMagic = "NURIMSH\x00"

const (
	/** @brief The current major version of the cache container format. Bumped on layout breaks. */
	MeshFormatMajorVersion uint16 = 1
	/** @brief The current minor version of the cache container format. */
	MeshFormatMinorVersion uint16 = 0
)

// On-disk record sizes in bytes. Encode/Decode below produce exactly these.
const (
	MeshBinaryHeaderSize    = 116
	SectionTocEntrySize     = 32
	VertexLayoutRecordSize  = 16
	SubmeshRecordSize       = 48
	LodRecordSize           = 16
	BufferSectionHeaderSize = 16
)

// Header flag bits.
const (
	/** @brief Set when the file's multi-byte fields were written little-endian. Always set by this writer. */
	MeshFlagLittleEndian uint32 = 1 << 0
	/** @brief Reserved for compressed section payloads. Never set by this writer. */
	MeshFlagCompressed uint32 = 1 << 1
)

// SectionTag packs a 4-character ASCII tag into its little-endian u32 form.
func SectionTag(tag string) uint32 {
	if len(tag) != 4 {
		return 0
	}
	return uint32(tag[0]) | uint32(tag[1])<<8 | uint32(tag[2])<<16 | uint32(tag[3])<<24
}

// SectionTagString is the inverse of SectionTag, for diagnostics.
func SectionTagString(tag uint32) string {
	return string([]byte{byte(tag), byte(tag >> 8), byte(tag >> 16), byte(tag >> 24)})
}

// Well-known section tags.
var (
	SectionTagVertexLayout = SectionTag("VLAY")
	SectionTagSubmeshes    = SectionTag("SMES")
	SectionTagLods         = SectionTag("LODS")
	SectionTagVertexBuffer = SectionTag("VBUF")
	SectionTagIndexBuffer  = SectionTag("IBUF")
)

// Vertex layout identifiers. Further IDs are reserved for future layouts.
const (
	/** @brief 32-byte stride: position 3xf32, texcoord 2xf32, normal snorm-10-10-10-2 u32,
	tangent snorm-10-10-10-2 u32 (handedness in the 2-bit field), u32 reserved. */
	VertexLayoutPacked32 uint32 = 1

	/** @brief The stride of the packed32 layout. */
	Packed32Stride uint32 = 32
)

// Attribute bits for VertexLayoutRecord.AttributeMask.
const (
	VertexAttribPosition uint32 = 1 << 0
	VertexAttribTexcoord uint32 = 1 << 1
	VertexAttribNormal   uint32 = 1 << 2
	VertexAttribTangent  uint32 = 1 << 3
)

/**
 * @brief The fixed header at offset 0 of every cache file. Field order is the
 * on-disk byte order; every multi-byte field is little-endian.
 */
type MeshBinaryHeader struct {
	/** @brief Must equal MeshCacheMagic. */
	Magic [8]byte
	/** @brief Major format version; readers reject files with a different major. */
	MajorVersion uint16
	/** @brief Minor format version; additive changes only. */
	MinorVersion uint16
	/** @brief The size of the header as written, for forward-compatible parsing. */
	HeaderSize uint16
	/** @brief The size of each TOC entry as written. */
	TocEntrySize uint16
	/** @brief MeshFlag* bits. */
	Flags uint32
	/** @brief Total file size in bytes, including this header. */
	FileSize uint64
	/** @brief Byte offset of the first SectionTocEntry. */
	TocOffset uint64
	/** @brief The number of contiguous TOC entries at TocOffset. */
	TocCount  uint32
	Reserved0 uint32
	/** @brief FNV-1a hash of the normalized source path, for revalidation. */
	SourcePathHash uint64
	/** @brief FNV-1a hash of the import options the cached data was built with. */
	ImportOptionsHash uint64
	/** @brief Size of the source asset at cache-write time. */
	SourceSizeBytes uint64
	/** @brief Modification time of the source asset at cache-write time, ns since epoch. */
	SourceMtimeNs int64
	/** @brief Axis-aligned bounds of the whole asset. */
	BoundsMin math.Vec3
	BoundsMax math.Vec3
	Reserved  [4]uint32
}

/**
 * @brief One table-of-contents entry. Offset and SizeBytes must lie within
 * the header's FileSize.
 */
type SectionTocEntry struct {
	/** @brief Section identifier, a SectionTag* value. */
	Tag uint32
	/** @brief Per-section version, currently 0. */
	Version uint32
	/** @brief Byte offset of the section payload from the start of the file. */
	Offset uint64
	/** @brief Size of the section payload as stored. */
	SizeBytes uint64
	/** @brief Payload size after decompression. Equals SizeBytes while MeshFlagCompressed is unused. */
	UncompressedSizeBytes uint64
}

/** @brief Describes how the vertex buffer section is laid out. */
type VertexLayoutRecord struct {
	/** @brief A VertexLayout* identifier. */
	LayoutID uint32
	/** @brief Bytes per vertex. */
	StrideBytes uint32
	/** @brief VertexAttrib* bits present in the layout. */
	AttributeMask uint32
	/** @brief Total vertices in the vertex buffer section. */
	VertexCount uint32
}

/** @brief One draw range within the index buffer. */
type SubmeshRecord struct {
	/** @brief First index of the range. */
	FirstIndex uint32
	/** @brief Number of indices in the range. */
	IndexCount uint32
	/** @brief Value added to each index when resolving vertices. */
	BaseVertex uint32
	/** @brief Index into the caller's material table. */
	MaterialIndex uint32
	/** @brief The LOD this submesh belongs to. */
	LodIndex uint32
	Reserved uint32
	/** @brief Axis-aligned bounds of this submesh. */
	BoundsMin math.Vec3
	BoundsMax math.Vec3
}

/** @brief One level of detail, spanning a contiguous run of submeshes. */
type LodRecord struct {
	/** @brief Index of the first submesh of this LOD. */
	FirstSubmesh uint32
	/** @brief Number of submeshes in this LOD. */
	SubmeshCount uint32
	/** @brief Triangle count of this LOD relative to LOD 0, in (0, 1]. */
	TriangleRatio float32
	/** @brief The simplification error target this LOD was built with. */
	TargetError float32
}

/** @brief Prefix of the VBUF and IBUF section payloads, followed by raw element data. */
type BufferSectionHeader struct {
	/** @brief Bytes per element (vertex stride, or 2/4 for indices). */
	ElementSizeBytes uint32
	/** @brief Number of elements that follow. */
	ElementCount uint32
	/** @brief Total bytes of element data that follow this header. */
	DataSizeBytes uint64
}

// Encode writes the header into dst, which must hold MeshBinaryHeaderSize bytes.
func (h *MeshBinaryHeader) Encode(dst []byte) {
	_ = dst[MeshBinaryHeaderSize-1]
	copy(dst[0:8], h.Magic[:])
	binary.LittleEndian.PutUint16(dst[8:], h.MajorVersion)
	binary.LittleEndian.PutUint16(dst[10:], h.MinorVersion)
	binary.LittleEndian.PutUint16(dst[12:], h.HeaderSize)
	binary.LittleEndian.PutUint16(dst[14:], h.TocEntrySize)
	binary.LittleEndian.PutUint32(dst[16:], h.Flags)
	binary.LittleEndian.PutUint64(dst[20:], h.FileSize)
	binary.LittleEndian.PutUint64(dst[28:], h.TocOffset)
	binary.LittleEndian.PutUint32(dst[36:], h.TocCount)
	binary.LittleEndian.PutUint32(dst[40:], h.Reserved0)
	binary.LittleEndian.PutUint64(dst[44:], h.SourcePathHash)
	binary.LittleEndian.PutUint64(dst[52:], h.ImportOptionsHash)
	binary.LittleEndian.PutUint64(dst[60:], h.SourceSizeBytes)
	binary.LittleEndian.PutUint64(dst[68:], uint64(h.SourceMtimeNs))
	putVec3(dst[76:], h.BoundsMin)
	putVec3(dst[88:], h.BoundsMax)
	for i, r := range h.Reserved {
		binary.LittleEndian.PutUint32(dst[100+i*4:], r)
	}
}

// Decode reads the header from src. It fails if src is shorter than the
// fixed header size; unknown trailing bytes of a larger declared header
// are the writer's business and are skipped by the caller.
func (h *MeshBinaryHeader) Decode(src []byte) error {
	if len(src) < MeshBinaryHeaderSize {
		return fmt.Errorf("mesh cache header requires %d bytes, have %d", MeshBinaryHeaderSize, len(src))
	}
	copy(h.Magic[:], src[0:8])
	h.MajorVersion = binary.LittleEndian.Uint16(src[8:])
	h.MinorVersion = binary.LittleEndian.Uint16(src[10:])
	h.HeaderSize = binary.LittleEndian.Uint16(src[12:])
	h.TocEntrySize = binary.LittleEndian.Uint16(src[14:])
	h.Flags = binary.LittleEndian.Uint32(src[16:])
	h.FileSize = binary.LittleEndian.Uint64(src[20:])
	h.TocOffset = binary.LittleEndian.Uint64(src[28:])
	h.TocCount = binary.LittleEndian.Uint32(src[36:])
	h.Reserved0 = binary.LittleEndian.Uint32(src[40:])
	h.SourcePathHash = binary.LittleEndian.Uint64(src[44:])
	h.ImportOptionsHash = binary.LittleEndian.Uint64(src[52:])
	h.SourceSizeBytes = binary.LittleEndian.Uint64(src[60:])
	h.SourceMtimeNs = int64(binary.LittleEndian.Uint64(src[68:]))
	h.BoundsMin = getVec3(src[76:])
	h.BoundsMax = getVec3(src[88:])
	for i := range h.Reserved {
		h.Reserved[i] = binary.LittleEndian.Uint32(src[100+i*4:])
	}
	return nil
}

// Encode writes the entry into dst, which must hold SectionTocEntrySize bytes.
func (e *SectionTocEntry) Encode(dst []byte) {
	_ = dst[SectionTocEntrySize-1]
	binary.LittleEndian.PutUint32(dst[0:], e.Tag)
	binary.LittleEndian.PutUint32(dst[4:], e.Version)
	binary.LittleEndian.PutUint64(dst[8:], e.Offset)
	binary.LittleEndian.PutUint64(dst[16:], e.SizeBytes)
	binary.LittleEndian.PutUint64(dst[24:], e.UncompressedSizeBytes)
}

func (e *SectionTocEntry) Decode(src []byte) error {
	if len(src) < SectionTocEntrySize {
		return fmt.Errorf("section TOC entry requires %d bytes, have %d", SectionTocEntrySize, len(src))
	}
	e.Tag = binary.LittleEndian.Uint32(src[0:])
	e.Version = binary.LittleEndian.Uint32(src[4:])
	e.Offset = binary.LittleEndian.Uint64(src[8:])
	e.SizeBytes = binary.LittleEndian.Uint64(src[16:])
	e.UncompressedSizeBytes = binary.LittleEndian.Uint64(src[24:])
	return nil
}

// Encode writes the record into dst, which must hold VertexLayoutRecordSize bytes.
func (r *VertexLayoutRecord) Encode(dst []byte) {
	_ = dst[VertexLayoutRecordSize-1]
	binary.LittleEndian.PutUint32(dst[0:], r.LayoutID)
	binary.LittleEndian.PutUint32(dst[4:], r.StrideBytes)
	binary.LittleEndian.PutUint32(dst[8:], r.AttributeMask)
	binary.LittleEndian.PutUint32(dst[12:], r.VertexCount)
}

func (r *VertexLayoutRecord) Decode(src []byte) error {
	if len(src) < VertexLayoutRecordSize {
		return fmt.Errorf("vertex layout record requires %d bytes, have %d", VertexLayoutRecordSize, len(src))
	}
	r.LayoutID = binary.LittleEndian.Uint32(src[0:])
	r.StrideBytes = binary.LittleEndian.Uint32(src[4:])
	r.AttributeMask = binary.LittleEndian.Uint32(src[8:])
	r.VertexCount = binary.LittleEndian.Uint32(src[12:])
	return nil
}

// Encode writes the record into dst, which must hold SubmeshRecordSize bytes.
func (r *SubmeshRecord) Encode(dst []byte) {
	_ = dst[SubmeshRecordSize-1]
	binary.LittleEndian.PutUint32(dst[0:], r.FirstIndex)
	binary.LittleEndian.PutUint32(dst[4:], r.IndexCount)
	binary.LittleEndian.PutUint32(dst[8:], r.BaseVertex)
	binary.LittleEndian.PutUint32(dst[12:], r.MaterialIndex)
	binary.LittleEndian.PutUint32(dst[16:], r.LodIndex)
	binary.LittleEndian.PutUint32(dst[20:], r.Reserved)
	putVec3(dst[24:], r.BoundsMin)
	putVec3(dst[36:], r.BoundsMax)
}

func (r *SubmeshRecord) Decode(src []byte) error {
	if len(src) < SubmeshRecordSize {
		return fmt.Errorf("submesh record requires %d bytes, have %d", SubmeshRecordSize, len(src))
	}
	r.FirstIndex = binary.LittleEndian.Uint32(src[0:])
	r.IndexCount = binary.LittleEndian.Uint32(src[4:])
	r.BaseVertex = binary.LittleEndian.Uint32(src[8:])
	r.MaterialIndex = binary.LittleEndian.Uint32(src[12:])
	r.LodIndex = binary.LittleEndian.Uint32(src[16:])
	r.Reserved = binary.LittleEndian.Uint32(src[20:])
	r.BoundsMin = getVec3(src[24:])
	r.BoundsMax = getVec3(src[36:])
	return nil
}

// Encode writes the record into dst, which must hold LodRecordSize bytes.
func (r *LodRecord) Encode(dst []byte) {
	_ = dst[LodRecordSize-1]
	binary.LittleEndian.PutUint32(dst[0:], r.FirstSubmesh)
	binary.LittleEndian.PutUint32(dst[4:], r.SubmeshCount)
	binary.LittleEndian.PutUint32(dst[8:], gomath.Float32bits(r.TriangleRatio))
	binary.LittleEndian.PutUint32(dst[12:], gomath.Float32bits(r.TargetError))
}

func (r *LodRecord) Decode(src []byte) error {
	if len(src) < LodRecordSize {
		return fmt.Errorf("LOD record requires %d bytes, have %d", LodRecordSize, len(src))
	}
	r.FirstSubmesh = binary.LittleEndian.Uint32(src[0:])
	r.SubmeshCount = binary.LittleEndian.Uint32(src[4:])
	r.TriangleRatio = gomath.Float32frombits(binary.LittleEndian.Uint32(src[8:]))
	r.TargetError = gomath.Float32frombits(binary.LittleEndian.Uint32(src[12:]))
	return nil
}

// Encode writes the header into dst, which must hold BufferSectionHeaderSize bytes.
func (b *BufferSectionHeader) Encode(dst []byte) {
	_ = dst[BufferSectionHeaderSize-1]
	binary.LittleEndian.PutUint32(dst[0:], b.ElementSizeBytes)
	binary.LittleEndian.PutUint32(dst[4:], b.ElementCount)
	binary.LittleEndian.PutUint64(dst[8:], b.DataSizeBytes)
}

func (b *BufferSectionHeader) Decode(src []byte) error {
	if len(src) < BufferSectionHeaderSize {
		return fmt.Errorf("buffer section header requires %d bytes, have %d", BufferSectionHeaderSize, len(src))
	}
	b.ElementSizeBytes = binary.LittleEndian.Uint32(src[0:])
	b.ElementCount = binary.LittleEndian.Uint32(src[4:])
	b.DataSizeBytes = binary.LittleEndian.Uint64(src[8:])
	return nil
}

func putVec3(dst []byte, v math.Vec3) {
	binary.LittleEndian.PutUint32(dst[0:], gomath.Float32bits(v.X))
	binary.LittleEndian.PutUint32(dst[4:], gomath.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(dst[8:], gomath.Float32bits(v.Z))
}

func getVec3(src []byte) math.Vec3 {
	return math.Vec3{
		X: gomath.Float32frombits(binary.LittleEndian.Uint32(src[0:])),
		Y: gomath.Float32frombits(binary.LittleEndian.Uint32(src[4:])),
		Z: gomath.Float32frombits(binary.LittleEndian.Uint32(src[8:])),
	}
}
