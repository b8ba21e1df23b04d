// Package encoding provides text encoding utilities for MMD model data.
package encoding

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// ShiftJISToUTF8 converts Shift-JIS encoded bytes to a UTF-8 string.
// Returns the original bytes as a string if conversion fails.
func ShiftJISToUTF8(data []byte) string {
	decoder := japanese.ShiftJIS.NewDecoder()
	result, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// ToUTF8 returns s unchanged when it is valid UTF-8, otherwise decodes it as
// Shift-JIS. Older PMD models store their texture names in Shift-JIS.
func ToUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return ShiftJISToUTF8([]byte(s))
}

// NormalizeTexturePath converts a model-embedded texture path to UTF-8 with
// forward slashes, dropping any trailing NULs left by fixed-size fields.
func NormalizeTexturePath(path string) string {
	path = strings.TrimRight(path, "\x00")
	path = ToUTF8(path)
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.TrimSpace(path)
}
