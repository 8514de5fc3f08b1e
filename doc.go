// Copyright (c) 2025 lifegpc
// SPDX-License-Identifier: MIT

/*
Package xp3 reads XP3 archives, the container format of the Kirikiri game
engine.

An archive holds an index describing its files; each file's content is the
concatenation of one or more segments, stored raw or compressed (zlib, or
zstd auto-detected by frame magic). Files are exposed as seekable streams
that decompress on the fly, so large members can be read without buffering
them whole.

# Basic Usage

	archive, err := xp3.Open("data.xp3")
	if err != nil {
		log.Fatal(err)
	}
	defer archive.Close()

	if err := archive.ReadIndex(); err != nil {
		log.Fatal(err)
	}

	for i, entry := range archive.Files() {
		f, err := archive.OpenFile(i)
		if err != nil {
			log.Fatal(err)
		}
		// f implements io.Reader, io.Seeker and io.Closer.
		io.Copy(io.Discard, f)
		f.Close()
		_ = entry
	}

Archives can also be opened from memory or any random-access source with
[OpenReaderAt], or from a single-cursor stream with [OpenReadSeeker], which
serializes access so files opened from different goroutines stay safe.

# Limitations

  - Read-only: no archive creation or entry mutation
  - Encrypted/obfuscated XP3 variants are not supported
  - The "protected" flag is parsed but not enforced
  - Only the first index block is read (no continuation blocks)
*/
package xp3
