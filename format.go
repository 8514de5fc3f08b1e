// Copyright (c) 2025 lifegpc
// SPDX-License-Identifier: MIT

package xp3

// XP3 format constants
var (
	// Magic signature "XP3\r\n \n\x1a\x8b\x67\x01" at the start of every archive
	xp3Magic = [11]byte{0x58, 0x50, 0x33, 0x0D, 0x0A, 0x20, 0x0A, 0x1A, 0x8B, 0x67, 0x01}

	// zstd frame magic, used to pick the codec for compressed regions
	zstdMagic = [4]byte{0x28, 0xB5, 0x2F, 0xFD}

	// Index chunk tags
	chunkFile = [4]byte{'F', 'i', 'l', 'e'}
	chunkInfo = [4]byte{'i', 'n', 'f', 'o'}
	chunkSegm = [4]byte{'s', 'e', 'g', 'm'}
	chunkAdlr = [4]byte{'a', 'd', 'l', 'r'}
)

const (
	// Index encode method byte: low three bits select the encoding,
	// 0x80 marks a continuation block (only the first block is read).
	indexEncodeMethodMask = 0x07
	indexEncodeRaw        = 0x00
	indexEncodeZlib       = 0x01
	indexContinue         = 0x80

	// FileEntry flags
	fileProtected = 1 << 31

	// Segment flag: low three bits select the encoding
	segmEncodeMethodMask = 0x07
	segmEncodeRaw        = 0x00
	segmEncodeZlib       = 0x01

	// Header layout
	headerSize      = 19 // magic + index offset
	segmentRecSize  = 28 // u32 flag + u64 start + u64 original + u64 packed
	chunkHeaderSize = 12 // 4-byte tag + u64 size
)

// Segment is one physical run of bytes contributing to a logical file.
// Compressed segments hold a zlib (or zstd) stream of OriginalSize bytes.
type Segment struct {
	Flag         uint32 // low three bits select the encoding: 0 = raw, 1 = zlib
	Start        uint64 // absolute offset of the packed bytes in the archive
	OriginalSize uint64 // uncompressed length contributed to the file
	PackedSize   uint64 // bytes occupied in the archive (== OriginalSize for raw)
}

// Compressed reports whether the segment data must run through a decoder.
func (s Segment) Compressed() bool {
	return s.Flag&segmEncodeMethodMask == segmEncodeZlib
}

// FileEntry describes one logical file stored in an archive.
type FileEntry struct {
	Filename     string // decoded from UTF-16LE
	Flags        uint32
	OriginalSize uint64
	PackedSize   uint64
	Adler32      uint32 // stored checksum of the decoded file; 0 means absent
	Segments     []Segment
}

// Protected reports whether the entry carries the "protected" flag.
// The flag is informational; this package does not enforce it.
func (e *FileEntry) Protected() bool {
	return e.Flags&fileProtected != 0
}
