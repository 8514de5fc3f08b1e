// Copyright (c) 2025 lifegpc
// SPDX-License-Identifier: MIT

// Command go-xp3 inspects, extracts and verifies XP3 archives.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	xp3 "github.com/lifegpc/go-xp3"
)

const copyChunkSize = 8192

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

func main() {
	app := &cli.App{
		Name:  "go-xp3",
		Usage: "inspect and extract Kirikiri XP3 archives",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		},
		Before: func(c *cli.Context) error {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if c.Bool("debug") {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "list archive contents with segment details",
				ArgsUsage: "<archive>",
				Action:    runList,
			},
			{
				Name:      "extract",
				Usage:     "extract every file into a directory named after the archive",
				ArgsUsage: "<archive>",
				Action:    runExtract,
			},
			{
				Name:      "speedtest",
				Usage:     "read every file to a discard buffer and report throughput",
				ArgsUsage: "<archive>",
				Action:    runSpeedtest,
			},
			{
				Name:      "verify",
				Usage:     "recompute Adler-32 checksums and compare against the index",
				ArgsUsage: "<archive>",
				Action:    runVerify,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// openArchive opens the archive named by the single positional argument and
// reads its index.
func openArchive(c *cli.Context) (*xp3.Archive, string, error) {
	if c.NArg() != 1 {
		cli.ShowSubcommandHelp(c)
		return nil, "", fmt.Errorf("expected exactly one archive path")
	}
	path := c.Args().First()
	archive, err := xp3.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", path, err)
	}
	if err := archive.ReadIndex(); err != nil {
		archive.Close()
		return nil, "", fmt.Errorf("read index of %s: %w", path, err)
	}
	log.Debug().Str("archive", path).Int("files", len(archive.Files())).Msg("index read")
	return archive, path, nil
}

func runList(c *cli.Context) error {
	archive, _, err := openArchive(c)
	if err != nil {
		return err
	}
	defer archive.Close()

	// Count how many segments across all entries share a start offset, to
	// make content-addressed deduplication visible.
	refs := make(map[uint64]int)
	for _, file := range archive.Files() {
		for _, seg := range file.Segments {
			refs[seg.Start]++
		}
	}

	for _, file := range archive.Files() {
		fmt.Printf("%s (original size: %d, packed size: %d, segments: %d)\n",
			file.Filename, file.OriginalSize, file.PackedSize, len(file.Segments))
		for _, seg := range file.Segments {
			fmt.Printf("  Segment: start=%d, original_size=%d, packed_size=%d, flag=0x%X, count=%d\n",
				seg.Start, seg.OriginalSize, seg.PackedSize, seg.Flag, refs[seg.Start])
		}
	}
	return nil
}

func runExtract(c *cli.Context) error {
	archive, path, err := openArchive(c)
	if err != nil {
		return err
	}
	defer archive.Close()

	outDir := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	buf := make([]byte, copyChunkSize)

	for i, file := range archive.Files() {
		if err := extractFile(archive, i, outDir, buf); err != nil {
			log.Error().Err(err).Str("file", file.Filename).Msg("extract failed")
			continue
		}
	}
	return nil
}

func extractFile(archive *xp3.Archive, index int, outDir string, buf []byte) error {
	entry := archive.Files()[index]
	name := filepath.FromSlash(entry.Filename)
	if !filepath.IsLocal(name) {
		return fmt.Errorf("unsafe path %q", entry.Filename)
	}

	in, err := archive.OpenFile(index)
	if err != nil {
		return err
	}
	defer in.Close()

	dest := filepath.Join(outDir, name)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer out.Close()

	// Hide out's ReadFrom so the copy goes through buf in copyChunkSize pieces.
	written, err := io.CopyBuffer(struct{ io.Writer }{out}, in, buf)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	if uint64(written) != entry.OriginalSize {
		log.Warn().Str("file", entry.Filename).
			Int64("written", written).
			Uint64("original", entry.OriginalSize).
			Msg("extracted size does not match original size")
	} else {
		log.Info().Str("file", entry.Filename).Int64("bytes", written).Msg("extracted")
	}
	return nil
}

func runSpeedtest(c *cli.Context) error {
	archive, _, err := openArchive(c)
	if err != nil {
		return err
	}
	defer archive.Close()

	buf := make([]byte, copyChunkSize)
	var total int64
	start := time.Now()

	for i, file := range archive.Files() {
		in, err := archive.OpenFile(i)
		if err != nil {
			log.Error().Err(err).Str("file", file.Filename).Msg("open failed")
			continue
		}
		n, err := io.CopyBuffer(io.Discard, in, buf)
		in.Close()
		if err != nil {
			log.Error().Err(err).Str("file", file.Filename).Msg("read failed")
			continue
		}
		total += n
	}

	elapsed := time.Since(start)
	mbps := float64(total) / (1 << 20) / elapsed.Seconds()
	fmt.Printf("Read %d bytes in %.3f seconds (%.2f MB/s)\n", total, elapsed.Seconds(), mbps)
	return nil
}

func runVerify(c *cli.Context) error {
	archive, _, err := openArchive(c)
	if err != nil {
		return err
	}
	defer archive.Close()

	var ok, failed, skipped int
	for i, file := range archive.Files() {
		if file.Adler32 == 0 {
			skipped++
			continue
		}
		if err := archive.VerifyFile(i); err != nil {
			fmt.Printf("FAIL %s: %v\n", file.Filename, err)
			failed++
			continue
		}
		fmt.Printf("OK   %s\n", file.Filename)
		ok++
	}
	fmt.Printf("%d ok, %d failed, %d skipped (no checksum)\n", ok, failed, skipped)
	return nil
}
