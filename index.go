// Copyright (c) 2025 lifegpc
// SPDX-License-Identifier: MIT

package xp3

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// ReadIndex locates and parses the archive index, populating Files.
// It must be called once before any OpenFile call; calling it again is a
// no-op. On error the archive must not be used for extraction.
//
// Only the first index block is read. The format defines a continuation bit
// (0x80) in the encode method byte; it is masked off here and the low three
// bits select the encoding, so a continue-flagged block still parses, but
// any follow-up blocks are ignored.
func (a *Archive) ReadIndex() error {
	if a.parsed {
		return nil
	}

	hdr := make([]byte, headerSize)
	if _, err := a.src.ReadAt(hdr, 0); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if !bytes.Equal(hdr[:len(xp3Magic)], xp3Magic[:]) {
		return fmt.Errorf("bad magic: not an XP3 archive")
	}

	indexOffset := binary.LittleEndian.Uint64(hdr[len(xp3Magic):])
	if indexOffset > math.MaxInt64 || int64(indexOffset) >= a.size {
		return fmt.Errorf("index offset %d out of range (archive size %d)", indexOffset, a.size)
	}

	index, err := a.readIndexBlock(int64(indexOffset))
	if err != nil {
		return err
	}
	files, err := parseIndex(index)
	if err != nil {
		return err
	}
	a.files = files
	a.parsed = true
	return nil
}

// readIndexBlock reads the framed index block at off and returns the decoded
// index bytes.
func (a *Archive) readIndexBlock(off int64) ([]byte, error) {
	blk := io.NewSectionReader(a.src, off, a.size-off)

	var method uint8
	if err := binary.Read(blk, binary.LittleEndian, &method); err != nil {
		return nil, fmt.Errorf("read index encode method: %w", err)
	}

	switch method & indexEncodeMethodMask {
	case indexEncodeRaw:
		var indexSize uint64
		if err := binary.Read(blk, binary.LittleEndian, &indexSize); err != nil {
			return nil, fmt.Errorf("read index size: %w", err)
		}
		if remain := a.size - off - 9; indexSize > uint64(remain) {
			return nil, fmt.Errorf("index size %d exceeds remaining archive bytes %d", indexSize, remain)
		}
		index := make([]byte, indexSize)
		if _, err := io.ReadFull(blk, index); err != nil {
			return nil, fmt.Errorf("read index: %w", err)
		}
		return index, nil

	case indexEncodeZlib:
		var packedSize, originalSize uint64
		if err := binary.Read(blk, binary.LittleEndian, &packedSize); err != nil {
			return nil, fmt.Errorf("read index packed size: %w", err)
		}
		if err := binary.Read(blk, binary.LittleEndian, &originalSize); err != nil {
			return nil, fmt.Errorf("read index original size: %w", err)
		}
		if remain := a.size - off - 17; packedSize > uint64(remain) {
			return nil, fmt.Errorf("index packed size %d exceeds remaining archive bytes %d", packedSize, remain)
		}
		region := io.NewSectionReader(a.src, off+17, int64(packedSize))
		index, err := decompress(region, originalSize)
		if err != nil {
			return nil, fmt.Errorf("decompress index: %w", err)
		}
		return index, nil

	default:
		return nil, fmt.Errorf("unknown index encode method: %d", method)
	}
}

// parseIndex walks the decoded index as a sequence of top-level chunks.
// "File" is the only recognized top-level tag.
func parseIndex(index []byte) ([]FileEntry, error) {
	var files []FileEntry
	for off := 0; off < len(index); {
		tag, body, next, err := readChunk(index, off)
		if err != nil {
			return nil, err
		}
		if tag != chunkFile {
			return nil, fmt.Errorf("unexpected index chunk %q", tag[:])
		}
		entry, err := parseFileEntry(body)
		if err != nil {
			return nil, err
		}
		files = append(files, entry)
		off = next
	}
	return files, nil
}

// parseFileEntry decodes the inner chunk sequence of one "File" payload.
// Unknown inner tags are skipped; the entry is valid once the payload is
// fully consumed, even without a "segm" chunk.
func parseFileEntry(payload []byte) (FileEntry, error) {
	var e FileEntry
	for off := 0; off < len(payload); {
		tag, body, next, err := readChunk(payload, off)
		if err != nil {
			return e, err
		}
		switch tag {
		case chunkInfo:
			if err := parseInfo(body, &e); err != nil {
				return e, err
			}
		case chunkAdlr:
			if len(body) < 4 {
				return e, fmt.Errorf("adlr chunk too short: %d bytes", len(body))
			}
			e.Adler32 = binary.LittleEndian.Uint32(body)
		case chunkSegm:
			segs, err := parseSegments(body)
			if err != nil {
				return e, err
			}
			e.Segments = segs
		}
		off = next
	}
	return e, nil
}

func parseInfo(body []byte, e *FileEntry) error {
	if len(body) < 22 {
		return fmt.Errorf("info chunk too short: %d bytes", len(body))
	}
	e.Flags = binary.LittleEndian.Uint32(body[0:4])
	e.OriginalSize = binary.LittleEndian.Uint64(body[4:12])
	e.PackedSize = binary.LittleEndian.Uint64(body[12:20])
	nameLen := int(binary.LittleEndian.Uint16(body[20:22]))
	if len(body) < 22+2*nameLen {
		return fmt.Errorf("info chunk too short for %d-character name", nameLen)
	}
	name, err := decodeUTF16(body[22 : 22+2*nameLen])
	if err != nil {
		return err
	}
	e.Filename = name
	return nil
}

func parseSegments(body []byte) ([]Segment, error) {
	if len(body)%segmentRecSize != 0 {
		return nil, fmt.Errorf("segm chunk size %d is not a multiple of %d", len(body), segmentRecSize)
	}
	segs := make([]Segment, 0, len(body)/segmentRecSize)
	for off := 0; off < len(body); off += segmentRecSize {
		rec := body[off:]
		segs = append(segs, Segment{
			Flag:         binary.LittleEndian.Uint32(rec[0:4]),
			Start:        binary.LittleEndian.Uint64(rec[4:12]),
			OriginalSize: binary.LittleEndian.Uint64(rec[12:20]),
			PackedSize:   binary.LittleEndian.Uint64(rec[20:28]),
		})
	}
	return segs, nil
}

// readChunk reads the chunk header at off and returns the tag, the payload
// and the offset of the next chunk.
func readChunk(buf []byte, off int) (tag [4]byte, body []byte, next int, err error) {
	if len(buf)-off < chunkHeaderSize {
		return tag, nil, 0, fmt.Errorf("truncated chunk header at offset %d", off)
	}
	copy(tag[:], buf[off:off+4])
	size := binary.LittleEndian.Uint64(buf[off+4 : off+12])
	off += chunkHeaderSize
	if size > uint64(len(buf)-off) {
		return tag, nil, 0, fmt.Errorf("chunk %q size %d exceeds remaining %d bytes", tag[:], size, len(buf)-off)
	}
	return tag, buf[off : off+int(size)], off + int(size), nil
}
