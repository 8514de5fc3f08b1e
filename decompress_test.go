// Copyright (c) 2025 lifegpc
// SPDX-License-Identifier: MIT

package xp3

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zlibPack(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func zstdPack(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestNewDecompressorZlib(t *testing.T) {
	content := bytes.Repeat([]byte("zlib data "), 200)
	dec, err := newDecompressor(bytes.NewReader(zlibPack(t, content)))
	require.NoError(t, err)
	defer dec.Close()

	got, err := io.ReadAll(dec)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestNewDecompressorZstd(t *testing.T) {
	content := bytes.Repeat([]byte("zstd data "), 200)
	packed := zstdPack(t, content)
	require.Equal(t, zstdMagic[:], packed[:4])

	dec, err := newDecompressor(bytes.NewReader(packed))
	require.NoError(t, err)
	defer dec.Close()

	got, err := io.ReadAll(dec)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestNewDecompressorEmpty(t *testing.T) {
	_, err := newDecompressor(bytes.NewReader(nil))
	require.Error(t, err)
}

func TestNewDecompressorGarbage(t *testing.T) {
	// Not a zstd frame, not a zlib header: zlib is attempted and fails.
	_, err := newDecompressor(bytes.NewReader([]byte{0xFF, 0xFE, 0xFD, 0xFC}))
	require.Error(t, err)
}

func TestDecompressExpectedSize(t *testing.T) {
	content := bytes.Repeat([]byte{0x11, 0x22}, 1000)
	got, err := decompress(bytes.NewReader(zlibPack(t, content)), uint64(len(content)))
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestDecompressShortStream(t *testing.T) {
	content := []byte("short")
	_, err := decompress(bytes.NewReader(zlibPack(t, content)), uint64(len(content))+10)
	require.Error(t, err)
}

func TestDecompressToEOF(t *testing.T) {
	content := bytes.Repeat([]byte("eof "), 64)
	got, err := decompress(bytes.NewReader(zstdPack(t, content)), 0)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestNewDecompressorTinyInput(t *testing.T) {
	// Inputs shorter than the 4-byte magic are sniffed without error and
	// fall through to zlib, which then rejects them cleanly.
	_, err := newDecompressor(bytes.NewReader([]byte{0x78}))
	require.Error(t, err)
}

func TestDecompressEmptyZlibStream(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	require.NoError(t, zw.Close())

	got, err := decompress(bytes.NewReader(buf.Bytes()), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
