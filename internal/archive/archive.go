// Package archive is the archive-decode capability used by the batch
// pipeline. It opens a zip container held in memory and exposes its entries
// lazily, in the order the central directory lists them.
//
// Entries compressed with Zstandard (method 93) are supported alongside the
// standard store/deflate methods.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/fpang/fedpath/internal/imaging"
)

func init() {
	// Zstandard entries (method 93, as written by WinZip and 7-Zip).
	zip.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())
}

// ErrNoImages is returned when a container holds no supported image entries.
var ErrNoImages = errors.New("no supported images found in archive")

// Error reports a container that could not be decoded.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return "invalid archive: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Entry is one named member of a container. Content is read on demand.
type Entry struct {
	Name  string
	IsDir bool
	Size  uint64

	file *zip.File
}

// Open returns a reader over the entry's decompressed content.
func (e Entry) Open() (io.ReadCloser, error) {
	if e.file == nil {
		return nil, fmt.Errorf("entry %s has no backing file", e.Name)
	}
	return e.file.Open()
}

// Read returns the entry's full decompressed content.
func (e Entry) Read() ([]byte, error) {
	rc, err := e.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", e.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Name, err)
	}
	return data, nil
}

// Decode opens blob as a zip container and lists its entries in directory
// order. Any structural problem is reported as *Error.
func Decode(blob []byte) ([]Entry, error) {
	if len(blob) == 0 {
		return nil, &Error{Err: errors.New("empty input")}
	}

	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, &Error{Err: err}
	}

	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		entries = append(entries, Entry{
			Name:  f.Name,
			IsDir: f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/"),
			Size:  f.UncompressedSize64,
			file:  f,
		})
	}

	log.Debug().
		Int("entries", len(entries)).
		Int("bytes", len(blob)).
		Msg("Archive decoded")

	return entries, nil
}

// Images keeps non-directory entries whose names carry a supported image
// extension, preserving order.
func Images(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		if imaging.IsImageName(e.Name) {
			out = append(out, e)
		}
	}
	return out
}

// DecodeImages decodes blob and returns only its image entries. It fails
// with ErrNoImages rather than returning an empty list.
func DecodeImages(blob []byte) ([]Entry, error) {
	entries, err := Decode(blob)
	if err != nil {
		return nil, err
	}
	images := Images(entries)
	if len(images) == 0 {
		log.Warn().Int("entries", len(entries)).Msg("Archive contains no supported images")
		return nil, ErrNoImages
	}
	return images, nil
}
