// Package imaging is the image-bytes capability: it recognises slide image
// files, encodes them for transport, prepares them for the model and renders
// the simulated saliency heatmap.
package imaging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// SupportedImageExtensions maps accepted slide image extensions to MIME types.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
}

// Image is an in-memory slide image.
type Image struct {
	Name     string
	MIMEType string
	Data     []byte
}

// IsImage reports whether ext (with leading dot, any case) is a supported image extension.
func IsImage(ext string) bool {
	_, ok := SupportedImageExtensions[strings.ToLower(ext)]
	return ok
}

// IsImageName reports whether a file name has a supported image extension.
func IsImageName(name string) bool {
	return IsImage(filepath.Ext(name))
}

// MIMEType returns the MIME type for ext.
func MIMEType(ext string) (string, error) {
	if m, ok := SupportedImageExtensions[strings.ToLower(ext)]; ok {
		return m, nil
	}
	return "", fmt.Errorf("unsupported image extension: %s", ext)
}

// NewImage wraps raw bytes, deriving the MIME type from name.
func NewImage(name string, data []byte) (Image, error) {
	mime, err := MIMEType(filepath.Ext(name))
	if err != nil {
		return Image{}, err
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("image %s is empty", name)
	}
	return Image{Name: name, MIMEType: mime, Data: data}, nil
}

// Load reads an image file from disk.
func Load(path string) (Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Image{}, fmt.Errorf("file not found: %s", path)
		}
		return Image{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return Image{}, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to read file: %w", err)
	}

	img, err := NewImage(filepath.Base(path), data)
	if err != nil {
		return Image{}, err
	}

	log.Debug().
		Str("path", path).
		Str("mime_type", img.MIMEType).
		Int64("size_bytes", info.Size()).
		Msg("Slide image loaded")

	return img, nil
}
