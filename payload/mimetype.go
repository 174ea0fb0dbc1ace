package payload

import (
	"mime"
	"path/filepath"
	"strings"
)

const defaultMediaType = "application/octet-stream"

// Extensions that say a file is compressed or otherwise encoded. Their
// media type describes the content before encoding, so we send these as
// opaque bytes instead.
var encodingExtensions = map[string]struct{}{
	".gz":  {},
	".bz2": {},
	".xz":  {},
	".z":   {},
	".br":  {},
	".zst": {},
}

// The standard library only knows a handful of types unless the system has
// a mime.types file, so we register the ones we care about.
func init() {
	for ext, t := range map[string]string{
		".txt":  "text/plain",
		".log":  "text/plain",
		".md":   "text/markdown",
		".csv":  "text/csv",
		".tsv":  "text/tab-separated-values",
		".htm":  "text/html",
		".html": "text/html",
		".png":  "image/png",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".gif":  "image/gif",
		".bmp":  "image/bmp",
		".webp": "image/webp",
		".pdf":  "application/pdf",
		".zip":  "application/zip",
	} {
		// Only fails for a malformed type, and these are constants.
		_ = mime.AddExtensionType(ext, t)
	}
}

// guessMediaType returns the media type (without parameters) implied by
// name's extension. Unknown extensions, and names such as report.csv.gz
// whose outer extension implies an encoding, get application/octet-stream.
func guessMediaType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return defaultMediaType
	}
	if _, ok := encodingExtensions[ext]; ok {
		return defaultMediaType
	}
	t := mime.TypeByExtension(ext)
	if t == "" {
		return defaultMediaType
	}
	mt, _, err := mime.ParseMediaType(t)
	if err != nil {
		return defaultMediaType
	}
	return mt
}
