package constants

import "strings"

// Format is the detected type of a fetched document.
type Format string

const (
	PDF  Format = "pdf"
	PNG  Format = "png"
	JPG  Format = "jpg"
	WEBP Format = "webp"
)

// mimeToFormat maps sniffed MIME types to the supported formats.
var mimeToFormat = map[string]Format{
	"application/pdf": PDF,
	"image/png":       PNG,
	"image/jpeg":      JPG,
	"image/webp":      WEBP,
}

// MapMIMEToFormat returns the format for a sniffed MIME type,
// or "" when the content type is not supported.
func MapMIMEToFormat(mime string) Format {
	return mimeToFormat[strings.ToLower(mime)]
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Ext returns the canonical file extension for a format.
func (f Format) Ext() string {
	return string(f)
}

// IsImage reports whether the format is a raster image (not PDF).
func (f Format) IsImage() bool {
	return f == PNG || f == JPG || f == WEBP
}
