// Package assets enumerates the local asset pool and performs the only
// writes the pool ever sees: no-clobber copies under canonical names.
package assets

import (
	"mime"
	"path/filepath"
	"strings"
)

// AssetFile is one binary file in the pool. RepairedName is set only when
// the raw name was repaired.
type AssetFile struct {
	RawName      string `json:"rawName" yaml:"rawName"`
	RepairedName string `json:"repairedName,omitempty" yaml:"repairedName,omitempty"`
	Extension    string `json:"extension" yaml:"extension"`
	SizeBytes    int64  `json:"sizeBytes" yaml:"sizeBytes"`
}

// Name is the filename used for display and matching: the repaired name
// when there is one, otherwise the raw name.
func (a AssetFile) Name() string {
	if a.RepairedName != "" {
		return a.RepairedName
	}
	return a.RawName
}

var recognized = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"heic": "image/heic",
}

// ExtensionOf returns the lower-cased extension of name without the dot, or
// fallback when it is absent or not a recognized image type.
func ExtensionOf(name, fallback string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if _, ok := recognized[ext]; ok {
		return ext
	}
	return strings.ToLower(strings.TrimPrefix(fallback, "."))
}

// IsRecognized reports whether name has a recognized image extension.
func IsRecognized(name string) bool {
	_, ok := recognized[strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))]
	return ok
}

// ContentType returns the MIME type for an asset name, image/jpeg by default.
func ContentType(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ct, ok := recognized[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension("." + ext); strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}

// CanonicalName is the asset name derived from a natural key.
func CanonicalName(naturalKey, sourceName, fallback string) string {
	return naturalKey + "." + ExtensionOf(sourceName, fallback)
}
