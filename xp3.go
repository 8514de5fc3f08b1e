// Copyright (c) 2025 lifegpc
// SPDX-License-Identifier: MIT

package xp3

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Archive is an XP3 container opened for reading.
//
// The entry list is populated by ReadIndex and immutable afterwards. Every
// File returned by OpenFile reads through the archive's source, so the
// archive must stay open for as long as any of its files are in use.
type Archive struct {
	src    io.ReaderAt
	size   int64
	closer io.Closer // set when Open created the source itself
	files  []FileEntry
	parsed bool
}

// Open opens the archive file at path.
//
// The file is accessed through ReadAt only, so files opened from different
// goroutines may read concurrently without extra locking.
func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	return &Archive{src: f, size: st.Size(), closer: f}, nil
}

// OpenReaderAt opens an archive over an arbitrary random-access source of the
// given size. The source is not closed by Archive.Close.
//
// Concurrent use of multiple files requires r's ReadAt to be safe for
// concurrent calls (true for *os.File, bytes.Reader and io.SectionReader).
func OpenReaderAt(r io.ReaderAt, size int64) *Archive {
	return &Archive{src: r, size: size}
}

// OpenReadSeeker opens an archive over a single-cursor seekable source.
// Pass size < 0 to discover it by seeking to the end.
//
// The seeker is wrapped so that each seek+read pair runs under a mutex,
// which makes simultaneous use of multiple files safe. A single File is
// still not safe to share between goroutines.
func OpenReadSeeker(rs io.ReadSeeker, size int64) (*Archive, error) {
	if size < 0 {
		end, err := rs.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, fmt.Errorf("measure stream: %w", err)
		}
		size = end
	}
	return &Archive{src: &lockedReaderAt{rs: rs}, size: size}, nil
}

// Files returns the parsed entry list in index order. The returned slice is
// shared with the archive and must not be modified.
func (a *Archive) Files() []FileEntry {
	return a.files
}

// OpenFile opens the entry at the given index for reading.
func (a *Archive) OpenFile(index int) (*File, error) {
	if !a.parsed {
		return nil, fmt.Errorf("index not read")
	}
	if index < 0 || index >= len(a.files) {
		return nil, fmt.Errorf("file index %d out of range [0, %d)", index, len(a.files))
	}
	return newFile(a.files[index], a.src), nil
}

// OpenFileEntry opens a file for the given entry. The entry is copied, so it
// may come from another archive listing as long as the segment offsets are
// valid for this archive's source.
func (a *Archive) OpenFileEntry(entry FileEntry) *File {
	return newFile(entry, a.src)
}

// Close releases the underlying source if the archive opened it itself
// (the Open path). Sources supplied by the caller are left open.
func (a *Archive) Close() error {
	if a.closer != nil {
		err := a.closer.Close()
		a.closer = nil
		return err
	}
	return nil
}

// lockedReaderAt adapts a single-cursor io.ReadSeeker into an io.ReaderAt.
// The mutex is held across one seek+read pair at a time, never across
// decoder state machine steps, so concurrent decoders make progress.
type lockedReaderAt struct {
	mu sync.Mutex
	rs io.ReadSeeker
}

func (l *lockedReaderAt) ReadAt(p []byte, off int64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.rs.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(l.rs, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}
