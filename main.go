/*
Inspector for nuri mesh cache files: prints the header, provenance and
section table of a .nmesh container.
*/
package main

import (
	"fmt"
	"os"

	"github.com/Panbok/nuri/engine/meshcache"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <file%s>\n", os.Args[0], meshcache.CacheFileExtension)
		os.Exit(2)
	}
	path := os.Args[1]

	data, err := meshcache.ReadBinaryFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	parsed, err := meshcache.ParseMeshCacheFile(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	h := parsed.Header
	fmt.Printf("%s\n", path)
	fmt.Printf("  format version:  %d.%d\n", h.MajorVersion, h.MinorVersion)
	fmt.Printf("  flags:           0x%08x\n", h.Flags)
	fmt.Printf("  file size:       %d bytes\n", h.FileSize)
	fmt.Printf("  source path hash: %016x\n", h.SourcePathHash)
	fmt.Printf("  options hash:     %016x\n", h.ImportOptionsHash)
	fmt.Printf("  source size:     %d bytes\n", h.SourceSizeBytes)
	fmt.Printf("  source mtime:    %d ns\n", h.SourceMtimeNs)
	fmt.Printf("  bounds min:      (%g, %g, %g)\n", h.BoundsMin.X, h.BoundsMin.Y, h.BoundsMin.Z)
	fmt.Printf("  bounds max:      (%g, %g, %g)\n", h.BoundsMax.X, h.BoundsMax.Y, h.BoundsMax.Z)
	fmt.Printf("  sections (%d):\n", h.TocCount)
	for _, entry := range parsed.Toc {
		fmt.Printf("    %s  offset %8d  size %8d\n",
			meshcache.SectionTagString(entry.Tag), entry.Offset, entry.SizeBytes)
	}
}
