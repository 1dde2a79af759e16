package imaging

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// SlideMetadata is the scanner/capture information embedded in a slide image.
// Most whole-slide exports carry little or none of it; every field is optional.
type SlideMetadata struct {
	ScannerMake  string
	ScannerModel string
	Captured     time.Time
	HasDate      bool
}

// ExtractMetadata reads EXIF metadata from img. Formats without EXIF (or with
// a damaged block) return an error; callers treat metadata as best-effort.
func ExtractMetadata(img Image) (*SlideMetadata, error) {
	exifData, err := imagemeta.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	meta := &SlideMetadata{
		ScannerMake:  strings.TrimSpace(exifData.Make),
		ScannerModel: strings.TrimSpace(exifData.Model),
	}

	// DateTimeOriginal > CreateDate > ModifyDate
	switch {
	case !exifData.DateTimeOriginal().IsZero():
		meta.Captured, meta.HasDate = exifData.DateTimeOriginal(), true
	case !exifData.CreateDate().IsZero():
		meta.Captured, meta.HasDate = exifData.CreateDate(), true
	case !exifData.ModifyDate().IsZero():
		meta.Captured, meta.HasDate = exifData.ModifyDate(), true
	}

	log.Debug().
		Str("file", img.Name).
		Str("make", meta.ScannerMake).
		Str("model", meta.ScannerModel).
		Bool("has_date", meta.HasDate).
		Msg("Slide metadata extracted")

	return meta, nil
}

// IsEmpty reports whether no field carries information.
func (m *SlideMetadata) IsEmpty() bool {
	return m == nil || (m.ScannerMake == "" && m.ScannerModel == "" && !m.HasDate)
}

// FormatMetadataContext renders the metadata as a prompt section. It returns
// "" when there is nothing to say.
func (m *SlideMetadata) FormatMetadataContext() string {
	if m.IsEmpty() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## SLIDE METADATA\n\n")
	if m.ScannerMake != "" || m.ScannerModel != "" {
		sb.WriteString(fmt.Sprintf("- Scanner: %s\n", strings.TrimSpace(m.ScannerMake+" "+m.ScannerModel)))
	}
	if m.HasDate {
		sb.WriteString(fmt.Sprintf("- Captured: %s\n", m.Captured.Format("January 2, 2006")))
	}
	return sb.String()
}
