// Copyright (c) 2025 lifegpc
// SPDX-License-Identifier: MIT

package xp3

import (
	"fmt"
	"io"
	"sort"
)

// File is a seekable read-only view of one archive entry. It maps logical
// offsets onto the entry's segment list and lazily opens a decoder for the
// compressed segment it is currently reading.
//
// A File is not safe for concurrent use; open one File per goroutine.
type File struct {
	entry  FileEntry
	src    io.ReaderAt
	segPos []uint64 // prefix sums of segment original sizes
	pos    uint64
	cache  io.ReadCloser // decoder over the current compressed segment
}

func newFile(entry FileEntry, src io.ReaderAt) *File {
	segPos := make([]uint64, len(entry.Segments))
	var pos uint64
	for i, seg := range entry.Segments {
		segPos[i] = pos
		pos += seg.OriginalSize
	}
	return &File{entry: entry, src: src, segPos: segPos}
}

// Entry returns a copy of the entry this file was opened from.
func (f *File) Entry() FileEntry {
	return f.entry
}

// Size returns the decoded length of the file.
func (f *File) Size() int64 {
	return int64(f.entry.OriginalSize)
}

// Read reads up to len(p) bytes at the current position. A single call never
// crosses a segment boundary, so short reads are routine; callers loop or use
// io.ReadFull.
func (f *File) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if f.pos >= f.entry.OriginalSize {
		return 0, io.EOF
	}

	if f.cache != nil {
		n, err := f.cache.Read(p)
		if n > 0 {
			f.pos += uint64(n)
			return n, nil
		}
		// Cache drained (or failed): drop it and fall through to the
		// segment lookup.
		f.cache.Close()
		f.cache = nil
		if err != nil && err != io.EOF {
			return 0, err
		}
	}

	if len(f.entry.Segments) == 0 {
		return 0, fmt.Errorf("entry %q has no segments but size %d", f.entry.Filename, f.entry.OriginalSize)
	}

	i := f.segmentAt(f.pos)
	seg := f.entry.Segments[i]
	skip := f.pos - f.segPos[i]
	if skip >= seg.OriginalSize {
		// Segments do not cover the advertised size.
		return 0, fmt.Errorf("entry %q: position %d beyond segment coverage", f.entry.Filename, f.pos)
	}

	if seg.Compressed() {
		region := io.NewSectionReader(f.src, int64(seg.Start), int64(seg.PackedSize))
		dec, err := newDecompressor(region)
		if err != nil {
			return 0, fmt.Errorf("open decoder for segment %d: %w", i, err)
		}
		if skip > 0 {
			if _, err := io.CopyN(io.Discard, dec, int64(skip)); err != nil {
				dec.Close()
				return 0, fmt.Errorf("skip %d bytes into segment %d: %w", skip, i, err)
			}
		}
		f.cache = dec
		n, err := dec.Read(p)
		if n > 0 {
			f.pos += uint64(n)
			return n, nil
		}
		f.cache.Close()
		f.cache = nil
		if err == nil || err == io.EOF {
			// The decoder produced fewer bytes than the segment claims.
			err = io.ErrUnexpectedEOF
		}
		return 0, fmt.Errorf("segment %d: %w", i, err)
	}

	// Raw segment: read straight from the archive, clamped to the segment.
	if remain := seg.OriginalSize - skip; uint64(len(p)) > remain {
		p = p[:remain]
	}
	n, err := f.src.ReadAt(p, int64(seg.Start+skip))
	f.pos += uint64(n)
	if n > 0 {
		return n, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return 0, fmt.Errorf("segment %d: %w", i, err)
}

// Seek sets the position for the next Read. Seeking past the decoded size
// fails. A forward seek inside the segment the decoder is parked on advances
// the decoder; any other move drops it, and the next Read reopens lazily.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = int64(f.pos) + offset
	case io.SeekEnd:
		newPos = int64(f.entry.OriginalSize) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if newPos < 0 || uint64(newPos) > f.entry.OriginalSize {
		return 0, fmt.Errorf("seek position %d out of range [0, %d]", newPos, f.entry.OriginalSize)
	}

	if f.cache != nil && uint64(newPos) < f.entry.OriginalSize {
		oldSeg := f.segmentAt(f.pos)
		newSeg := f.segmentAt(uint64(newPos))
		if oldSeg == newSeg && uint64(newPos) >= f.pos {
			if _, err := io.CopyN(io.Discard, f.cache, newPos-int64(f.pos)); err != nil {
				f.cache.Close()
				f.cache = nil
			}
		} else {
			f.cache.Close()
			f.cache = nil
		}
	}

	f.pos = uint64(newPos)
	return newPos, nil
}

// Close releases the decoder state. The archive source stays open; Close may
// be called any number of times, and the File remains readable afterwards
// (the decoder reopens lazily).
func (f *File) Close() error {
	if f.cache != nil {
		err := f.cache.Close()
		f.cache = nil
		return err
	}
	return nil
}

// segmentAt returns the index of the segment containing logical offset pos,
// the last segment whose start is <= pos.
func (f *File) segmentAt(pos uint64) int {
	i := sort.Search(len(f.segPos), func(i int) bool { return f.segPos[i] > pos })
	if i == 0 {
		return 0
	}
	return i - 1
}
