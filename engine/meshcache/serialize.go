package meshcache

import (
	"encoding/binary"
	"fmt"
	gomath "math"

	"github.com/Panbok/nuri/engine/math"
)

/**
 * @brief The logical content of a cache file: everything the importer needs
 * to rebuild a renderable mesh without re-processing the source asset.
 */
type MeshCachePayload struct {
	/** @brief Layout of VertexData. */
	Layout VertexLayoutRecord
	/** @brief Draw ranges, grouped by LOD. */
	Submeshes []SubmeshRecord
	/** @brief Levels of detail. At least one entry for a valid mesh. */
	Lods []LodRecord
	/** @brief Raw vertex bytes, Layout.VertexCount * Layout.StrideBytes long. */
	VertexData []byte
	/** @brief Raw index bytes. */
	IndexData []byte
	/** @brief Bytes per index, 2 or 4. */
	IndexSizeBytes uint32
	/** @brief Axis-aligned bounds of the whole asset. */
	Bounds math.Extents3D
}

/**
 * @brief A validated view over a cache file's bytes. Section accessors
 * return sub-slices of the original buffer; nothing is copied.
 */
type ParsedMeshCache struct {
	Header MeshBinaryHeader
	Toc    []SectionTocEntry

	data []byte
}

// SerializeMeshCache frames a payload into the on-disk container: header,
// TOC, then one section per payload part. The provenance fields of key and
// fp are recorded in the header so a reader can revalidate the entry with
// nothing but a stat call.
func SerializeMeshCache(payload *MeshCachePayload, key *MeshCacheKey, fp MeshSourceFingerprint) []byte {
	sections := []struct {
		tag   uint32
		size  uint64
		write func(dst []byte)
	}{
		{
			tag:  SectionTagVertexLayout,
			size: VertexLayoutRecordSize,
			write: func(dst []byte) {
				payload.Layout.Encode(dst)
			},
		},
		{
			tag:  SectionTagSubmeshes,
			size: uint64(len(payload.Submeshes)) * SubmeshRecordSize,
			write: func(dst []byte) {
				for i := range payload.Submeshes {
					payload.Submeshes[i].Encode(dst[i*SubmeshRecordSize:])
				}
			},
		},
		{
			tag:  SectionTagLods,
			size: uint64(len(payload.Lods)) * LodRecordSize,
			write: func(dst []byte) {
				for i := range payload.Lods {
					payload.Lods[i].Encode(dst[i*LodRecordSize:])
				}
			},
		},
		{
			tag:  SectionTagVertexBuffer,
			size: BufferSectionHeaderSize + uint64(len(payload.VertexData)),
			write: func(dst []byte) {
				bsh := BufferSectionHeader{
					ElementSizeBytes: payload.Layout.StrideBytes,
					ElementCount:     payload.Layout.VertexCount,
					DataSizeBytes:    uint64(len(payload.VertexData)),
				}
				bsh.Encode(dst)
				copy(dst[BufferSectionHeaderSize:], payload.VertexData)
			},
		},
		{
			tag:  SectionTagIndexBuffer,
			size: BufferSectionHeaderSize + uint64(len(payload.IndexData)),
			write: func(dst []byte) {
				count := uint32(0)
				if payload.IndexSizeBytes > 0 {
					count = uint32(len(payload.IndexData)) / payload.IndexSizeBytes
				}
				bsh := BufferSectionHeader{
					ElementSizeBytes: payload.IndexSizeBytes,
					ElementCount:     count,
					DataSizeBytes:    uint64(len(payload.IndexData)),
				}
				bsh.Encode(dst)
				copy(dst[BufferSectionHeaderSize:], payload.IndexData)
			},
		},
	}

	tocOffset := uint64(MeshBinaryHeaderSize)
	offset := tocOffset + uint64(len(sections))*SectionTocEntrySize
	fileSize := offset
	for _, s := range sections {
		fileSize += s.size
	}

	out := make([]byte, fileSize)

	header := MeshBinaryHeader{
		MajorVersion:      MeshFormatMajorVersion,
		MinorVersion:      MeshFormatMinorVersion,
		HeaderSize:        MeshBinaryHeaderSize,
		TocEntrySize:      SectionTocEntrySize,
		Flags:             MeshFlagLittleEndian,
		FileSize:          fileSize,
		TocOffset:         tocOffset,
		TocCount:          uint32(len(sections)),
		SourcePathHash:    key.SourcePathHash,
		ImportOptionsHash: key.OptionsHash,
		SourceSizeBytes:   fp.SizeBytes,
		SourceMtimeNs:     fp.MtimeNs,
		BoundsMin:         payload.Bounds.Min,
		BoundsMax:         payload.Bounds.Max,
	}
	copy(header.Magic[:], MeshCacheMagic)
	header.Encode(out)

	for i, s := range sections {
		entry := SectionTocEntry{
			Tag:                   s.tag,
			Offset:                offset,
			SizeBytes:             s.size,
			UncompressedSizeBytes: s.size,
		}
		entry.Encode(out[tocOffset+uint64(i)*SectionTocEntrySize:])
		s.write(out[offset : offset+s.size])
		offset += s.size
	}

	return out
}

// ParseMeshCacheFile validates the container framing of data and returns a
// view over it. It checks the magic, the major version, the endianness
// flag, the declared sizes, and that the TOC and every section lie inside
// the file. Headers and TOC entries larger than this reader knows are
// accepted; their extra bytes are skipped.
func ParseMeshCacheFile(data []byte) (*ParsedMeshCache, error) {
	var header MeshBinaryHeader
	if err := header.Decode(data); err != nil {
		return nil, err
	}
	if string(header.Magic[:]) != MeshCacheMagic {
		return nil, fmt.Errorf("not a mesh cache file: bad magic %q", header.Magic)
	}
	if header.MajorVersion != MeshFormatMajorVersion {
		return nil, fmt.Errorf("unsupported mesh cache major version %d (want %d)", header.MajorVersion, MeshFormatMajorVersion)
	}
	if header.Flags&MeshFlagLittleEndian == 0 {
		return nil, fmt.Errorf("mesh cache file was not written little-endian")
	}
	if header.Flags&MeshFlagCompressed != 0 {
		return nil, fmt.Errorf("compressed mesh cache payloads are not supported")
	}
	if header.HeaderSize < MeshBinaryHeaderSize || header.TocEntrySize < SectionTocEntrySize {
		return nil, fmt.Errorf("mesh cache declares header/TOC entry sizes %d/%d smaller than the format minimum",
			header.HeaderSize, header.TocEntrySize)
	}
	if header.FileSize != uint64(len(data)) {
		return nil, fmt.Errorf("mesh cache declares %d bytes but file holds %d", header.FileSize, len(data))
	}

	// TocCount and TocEntrySize are 32- and 16-bit, so their product cannot
	// wrap a uint64; TocOffset can, and is checked before any addition.
	tocSize := uint64(header.TocCount) * uint64(header.TocEntrySize)
	if header.TocOffset < uint64(header.HeaderSize) ||
		header.TocOffset > header.FileSize ||
		tocSize > header.FileSize-header.TocOffset {
		return nil, fmt.Errorf("mesh cache TOC (%d entries at offset %d) exceeds file size %d",
			header.TocCount, header.TocOffset, header.FileSize)
	}

	toc := make([]SectionTocEntry, header.TocCount)
	for i := range toc {
		entryOffset := header.TocOffset + uint64(i)*uint64(header.TocEntrySize)
		if err := toc[i].Decode(data[entryOffset:]); err != nil {
			return nil, err
		}
		// Offset and SizeBytes come straight off disk; compare each against
		// FileSize separately so a corrupted pair cannot wrap the sum.
		if toc[i].Offset > header.FileSize || toc[i].SizeBytes > header.FileSize-toc[i].Offset {
			return nil, fmt.Errorf("mesh cache section '%s' (%d bytes at offset %d) exceeds file size %d",
				SectionTagString(toc[i].Tag), toc[i].SizeBytes, toc[i].Offset, header.FileSize)
		}
	}

	return &ParsedMeshCache{Header: header, Toc: toc, data: data}, nil
}

// Section returns the raw bytes of the section with the given tag.
func (p *ParsedMeshCache) Section(tag uint32) ([]byte, bool) {
	for i := range p.Toc {
		if p.Toc[i].Tag == tag {
			return p.data[p.Toc[i].Offset : p.Toc[i].Offset+p.Toc[i].SizeBytes], true
		}
	}
	return nil, false
}

// Payload decodes the well-known sections into a MeshCachePayload. Vertex
// and index bytes still alias the parsed buffer.
func (p *ParsedMeshCache) Payload() (*MeshCachePayload, error) {
	payload := &MeshCachePayload{
		Bounds: math.Extents3D{Min: p.Header.BoundsMin, Max: p.Header.BoundsMax},
	}

	layoutBytes, ok := p.Section(SectionTagVertexLayout)
	if !ok {
		return nil, fmt.Errorf("mesh cache file has no vertex layout section")
	}
	if err := payload.Layout.Decode(layoutBytes); err != nil {
		return nil, err
	}

	if submeshBytes, ok := p.Section(SectionTagSubmeshes); ok {
		count := len(submeshBytes) / SubmeshRecordSize
		payload.Submeshes = make([]SubmeshRecord, count)
		for i := range payload.Submeshes {
			if err := payload.Submeshes[i].Decode(submeshBytes[i*SubmeshRecordSize:]); err != nil {
				return nil, err
			}
		}
	}

	if lodBytes, ok := p.Section(SectionTagLods); ok {
		count := len(lodBytes) / LodRecordSize
		payload.Lods = make([]LodRecord, count)
		for i := range payload.Lods {
			if err := payload.Lods[i].Decode(lodBytes[i*LodRecordSize:]); err != nil {
				return nil, err
			}
		}
	}

	vbuf, ok := p.Section(SectionTagVertexBuffer)
	if !ok {
		return nil, fmt.Errorf("mesh cache file has no vertex buffer section")
	}
	var vbh BufferSectionHeader
	if err := vbh.Decode(vbuf); err != nil {
		return nil, err
	}
	// Decode guarantees the section header fits; compare the declared data
	// size against the remainder so a huge value cannot wrap the sum.
	if vbh.DataSizeBytes > uint64(len(vbuf)-BufferSectionHeaderSize) {
		return nil, fmt.Errorf("vertex buffer section truncated: header declares %d data bytes, section holds %d",
			vbh.DataSizeBytes, len(vbuf)-BufferSectionHeaderSize)
	}
	payload.VertexData = vbuf[BufferSectionHeaderSize : BufferSectionHeaderSize+vbh.DataSizeBytes]

	ibuf, ok := p.Section(SectionTagIndexBuffer)
	if !ok {
		return nil, fmt.Errorf("mesh cache file has no index buffer section")
	}
	var ibh BufferSectionHeader
	if err := ibh.Decode(ibuf); err != nil {
		return nil, err
	}
	if ibh.DataSizeBytes > uint64(len(ibuf)-BufferSectionHeaderSize) {
		return nil, fmt.Errorf("index buffer section truncated: header declares %d data bytes, section holds %d",
			ibh.DataSizeBytes, len(ibuf)-BufferSectionHeaderSize)
	}
	payload.IndexData = ibuf[BufferSectionHeaderSize : BufferSectionHeaderSize+ibh.DataSizeBytes]
	payload.IndexSizeBytes = ibh.ElementSizeBytes

	return payload, nil
}

// PackVertices encodes vertices into the packed32 layout. Normals and
// tangents are quantized to snorm-10 components; the tangent's handedness
// sign lands in the 2-bit field (0 for -1, 1 for +1).
func PackVertices(vertices []math.Vertex3D) []byte {
	out := make([]byte, len(vertices)*int(Packed32Stride))
	for i, v := range vertices {
		dst := out[i*int(Packed32Stride):]
		putVec3(dst[0:], v.Position)
		binary.LittleEndian.PutUint32(dst[12:], gomath.Float32bits(v.Texcoord.X))
		binary.LittleEndian.PutUint32(dst[16:], gomath.Float32bits(v.Texcoord.Y))
		binary.LittleEndian.PutUint32(dst[20:], math.PackSnorm1010102(v.Normal.X, v.Normal.Y, v.Normal.Z, 0))
		handedness := uint32(1)
		if v.Tangent.W < 0 {
			handedness = 0
		}
		binary.LittleEndian.PutUint32(dst[24:], math.PackSnorm1010102(v.Tangent.X, v.Tangent.Y, v.Tangent.Z, handedness))
		binary.LittleEndian.PutUint32(dst[28:], 0)
	}
	return out
}

// UnpackVertices decodes packed32 vertex bytes produced by PackVertices.
func UnpackVertices(data []byte) ([]math.Vertex3D, error) {
	if len(data)%int(Packed32Stride) != 0 {
		return nil, fmt.Errorf("packed vertex data length %d is not a multiple of the %d-byte stride", len(data), Packed32Stride)
	}
	vertices := make([]math.Vertex3D, len(data)/int(Packed32Stride))
	for i := range vertices {
		src := data[i*int(Packed32Stride):]
		vertices[i].Position = getVec3(src[0:])
		vertices[i].Texcoord.X = gomath.Float32frombits(binary.LittleEndian.Uint32(src[12:]))
		vertices[i].Texcoord.Y = gomath.Float32frombits(binary.LittleEndian.Uint32(src[16:]))
		nx, ny, nz, _ := math.UnpackSnorm1010102(binary.LittleEndian.Uint32(src[20:]))
		vertices[i].Normal = math.Vec3{X: nx, Y: ny, Z: nz}
		tx, ty, tz, hw := math.UnpackSnorm1010102(binary.LittleEndian.Uint32(src[24:]))
		sign := float32(1)
		if hw == 0 {
			sign = -1
		}
		vertices[i].Tangent = math.Vec4{X: tx, Y: ty, Z: tz, W: sign}
	}
	return vertices, nil
}

// Packed32LayoutRecord returns the layout record describing vertexCount
// vertices in the packed32 layout.
func Packed32LayoutRecord(vertexCount uint32) VertexLayoutRecord {
	return VertexLayoutRecord{
		LayoutID:      VertexLayoutPacked32,
		StrideBytes:   Packed32Stride,
		AttributeMask: VertexAttribPosition | VertexAttribTexcoord | VertexAttribNormal | VertexAttribTangent,
		VertexCount:   vertexCount,
	}
}
