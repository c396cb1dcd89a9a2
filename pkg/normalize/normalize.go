// Package normalize turns raw names and filenames into comparable keys and
// repairs filenames whose multi-byte text was misread through a single-byte
// code page.
package normalize

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// stemSeparators are replaced with spaces when a filename is turned into a key.
const stemSeparators = `_-./\`

// Normalize folds full-width forms to their narrow equivalents, upper-cases,
// collapses every whitespace run (including U+3000) to one ASCII space and
// trims. It never fails and Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = width.Fold.String(s)
	s = strings.ToUpper(s)
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// StemKey returns the normalized stem of a filename: the extension is
// stripped and separators and punctuation become spaces.
func StemKey(filename string) string {
	stem := Stem(filename)
	stem = strings.Map(func(r rune) rune {
		if strings.ContainsRune(stemSeparators, r) || unicode.IsPunct(r) {
			return ' '
		}
		return r
	}, stem)
	return Normalize(stem)
}

// Stem strips the extension from a filename. A trailing ".xyz" only counts
// as an extension when it holds no whitespace, so "dr. smith" keeps its dot.
func Stem(filename string) string {
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	ext := filepath.Ext(base)
	if ext == "" || ext == base || strings.IndexFunc(ext, unicode.IsSpace) >= 0 {
		return base
	}
	return strings.TrimSuffix(base, ext)
}

// IsNumeric reports whether s is a non-empty run of ASCII digits.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
