package model

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a target or source image format tag.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
	FormatPDF  Format = "pdf"
	FormatHEIC Format = "heic" // source only
)

type formatInfo struct {
	mime      string
	extension string
	aliases   []string
	target    bool
}

var formats = map[Format]formatInfo{
	FormatPNG:  {mime: "image/png", extension: ".png", target: true},
	FormatJPEG: {mime: "image/jpeg", extension: ".jpg", aliases: []string{"jpg", "jpe"}, target: true},
	FormatWebP: {mime: "image/webp", extension: ".webp", target: true},
	FormatGIF:  {mime: "image/gif", extension: ".gif", target: true},
	FormatBMP:  {mime: "image/bmp", extension: ".bmp", target: true},
	FormatTIFF: {mime: "image/tiff", extension: ".tiff", aliases: []string{"tif"}, target: true},
	FormatPDF:  {mime: "application/pdf", extension: ".pdf", target: true},
	FormatHEIC: {mime: "image/heic", extension: ".heic", aliases: []string{"heif"}},
}

// extra MIME types browsers and cameras declare for known formats.
var mimeAliases = map[string]Format{
	"image/jpg":           FormatJPEG,
	"image/pjpeg":         FormatJPEG,
	"image/x-ms-bmp":      FormatBMP,
	"image/x-bmp":         FormatBMP,
	"image/heif":          FormatHEIC,
	"image/heic-sequence": FormatHEIC,
	"image/heif-sequence": FormatHEIC,
}

// Formats returns every known format in a stable order.
func Formats() []Format {
	return []Format{FormatPNG, FormatJPEG, FormatWebP, FormatGIF, FormatBMP, FormatTIFF, FormatPDF, FormatHEIC}
}

// ParseFormat resolves a user supplied tag such as "jpg", ".JPEG" or "tif".
func ParseFormat(s string) (Format, bool) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")
	if s == "" {
		return "", false
	}

	for f, info := range formats {
		if string(f) == s {
			return f, true
		}
		for _, a := range info.aliases {
			if a == s {
				return f, true
			}
		}
	}

	return "", false
}

// FormatFromMIME resolves a declared media type.
func FormatFromMIME(mime string) (Format, bool) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}

	if f, ok := mimeAliases[mime]; ok {
		return f, true
	}
	for f, info := range formats {
		if info.mime == mime {
			return f, true
		}
	}

	return "", false
}

// FormatFromName resolves the format denoted by a file name's extension.
func FormatFromName(name string) (Format, bool) {
	return ParseFormat(filepath.Ext(name))
}

// MIMEType returns the canonical media type, or application/octet-stream.
func (f Format) MIMEType() string {
	if info, ok := formats[f]; ok {
		return info.mime
	}
	return "application/octet-stream"
}

// Extension returns the canonical file extension including the dot.
func (f Format) Extension() string {
	if info, ok := formats[f]; ok {
		return info.extension
	}
	return ""
}

// IsTarget reports whether files can be converted into f.
func (f Format) IsTarget() bool {
	return formats[f].target
}

// IsLossy reports whether the encoder for f honours a quality setting.
func (f Format) IsLossy() bool {
	return f == FormatJPEG || f == FormatWebP
}

// UnmarshalText accepts the same tags as ParseFormat. Empty text leaves the
// format unset.
func (f *Format) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*f = ""
		return nil
	}

	parsed, ok := ParseFormat(string(text))
	if !ok {
		return fmt.Errorf("unknown format %q", text)
	}
	*f = parsed
	return nil
}

func (f Format) String() string {
	return string(f)
}
