package censor

import (
	"encoding/base64"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ImageFormatUnknown is returned by SniffImageFormat when no signature matches.
const ImageFormatUnknown = "unknown"

// detected MIME type to the short name used in data URIs
var imageFormats = map[string]string{
	"image/png":    "png",
	"image/jpeg":   "jpeg",
	"image/gif":    "gif",
	"image/bmp":    "bmp",
	"image/webp":   "webp",
	"image/x-icon": "ico",
	"image/x-icns": "icns",
	"image/tiff":   "tiff",
	"image/jp2":    "jp2",
}

// SniffImageFormat identifies an image by its leading magic bytes. The result
// is a short format name usable in a data URI ("png", "jpeg", ...), or
// ImageFormatUnknown.
func SniffImageFormat(data []byte) string {
	// walk up so that refinements (eg, animated png) resolve to their base format
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if name, ok := imageFormats[m.String()]; ok {
			return name
		}
	}
	return ImageFormatUnknown
}

// DecodeInlineImage strips the InlineImagePrefix, decodes the base64 payload
// and sniffs its format. Undecodable payloads and unrecognized formats are
// ErrInvalidInput.
func DecodeInlineImage(provider, image string) (payload string, format string, err error) {
	payload = strings.TrimPrefix(image, InlineImagePrefix)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", "", Wrap(ErrInvalidInput, provider, "inline image is not valid base64", err)
	}
	format = SniffImageFormat(data)
	if format == ImageFormatUnknown {
		return "", "", Errorf(ErrInvalidInput, provider, "unknown image format")
	}
	return payload, format, nil
}

// DataURI renders a base64 payload as a data URI for the given format.
func DataURI(format, payload string) string {
	return "data:image/" + format + ";base64," + payload
}

// InlineImage renders raw bytes with the InlineImagePrefix.
func InlineImage(data []byte) string {
	return InlineImagePrefix + base64.StdEncoding.EncodeToString(data)
}
