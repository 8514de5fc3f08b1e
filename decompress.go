// Copyright (c) 2025 lifegpc
// SPDX-License-Identifier: MIT

package xp3

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// newDecompressor wraps src in a streaming decompressor. The codec is picked
// by sniffing up to 4 bytes: a zstd frame magic selects zstd, anything else
// is treated as a zlib stream. src must be seekable so the sniffed bytes can
// be rewound before the decoder takes over.
func newDecompressor(src io.ReadSeeker) (io.ReadCloser, error) {
	var header [4]byte
	n, err := io.ReadFull(src, header[:])
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("sniff codec: %w", io.ErrUnexpectedEOF)
		}
		return nil, fmt.Errorf("sniff codec: %w", err)
	}
	if _, err := src.Seek(-int64(n), io.SeekCurrent); err != nil {
		return nil, fmt.Errorf("rewind sniffed header: %w", err)
	}

	if n == len(header) && header == zstdMagic {
		dec, err := zstd.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("init zstd decoder: %w", err)
		}
		return dec.IOReadCloser(), nil
	}

	zr, err := zlib.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("init zlib decoder: %w", err)
	}
	return zr, nil
}

// decompress inflates src into memory. When expected is non-zero, exactly
// that many bytes must be produced; when zero, it reads to end of stream.
func decompress(src io.ReadSeeker, expected uint64) ([]byte, error) {
	dec, err := newDecompressor(src)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	if expected == 0 {
		out, err := io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("decompress: %w", err)
		}
		return out, nil
	}

	out := make([]byte, expected)
	if _, err := io.ReadFull(dec, out); err != nil {
		return nil, fmt.Errorf("decompress %d bytes: %w", expected, err)
	}
	return out, nil
}
