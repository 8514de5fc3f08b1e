// Copyright (c) 2025 lifegpc
// SPDX-License-Identifier: MIT

package xp3

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// XP3 stores filenames as UTF-16LE without a BOM or trailing NUL.
var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func decodeUTF16(b []byte) (string, error) {
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode UTF-16LE: %w", err)
	}
	return string(out), nil
}
