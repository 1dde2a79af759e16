package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	// Decoders for image.Decode.
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxModelDimension bounds the longest edge of images sent to the model.
const MaxModelDimension = 2048

// MaxHeatmapDimension bounds the longest edge of the rendered heatmap.
const MaxHeatmapDimension = 1024

// modelNativeTypes are the formats Gemini accepts inline without conversion.
var modelNativeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ToEncodedBytes returns img as a base64 data URL.
func ToEncodedBytes(img Image) string {
	return dataURL(img.MIMEType, img.Data)
}

func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// HeatmapSimulation renders a pseudo-saliency map for img and returns it as a
// PNG data URL. It is a fixed per-pixel colour transform, not a trained model:
// darker (more stained) pixels come out hotter. Identical pixels always yield
// identical output.
func HeatmapSimulation(img Image) (string, error) {
	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", img.Name, err)
	}

	src = downscale(src, MaxHeatmapDimension)
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := src.At(x, y).RGBA()
			i := (y-b.Min.Y)*out.Stride + (x-b.Min.X)*4
			h := heatPixel(uint8(r>>8), uint8(g>>8), uint8(bl>>8))
			out.Pix[i] = h[0]
			out.Pix[i+1] = h[1]
			out.Pix[i+2] = h[2]
			out.Pix[i+3] = uint8(a >> 8)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return "", fmt.Errorf("failed to encode heatmap: %w", err)
	}

	log.Debug().
		Str("file", img.Name).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Int("output_size", buf.Len()).
		Msg("Heatmap simulation rendered")

	return dataURL("image/png", buf.Bytes()), nil
}

// heatPixel maps an RGB pixel to a blue-green-red ramp keyed on inverted luma.
func heatPixel(r, g, b uint8) [3]uint8 {
	luma := (299*int(r) + 587*int(g) + 114*int(b)) / 1000
	intensity := 255 - luma
	green := 255 - int(math.Abs(float64(2*intensity-255)))
	return [3]uint8{uint8(intensity), uint8(green), uint8(255 - intensity)}
}

// PrepareForModel converts img into a form the model accepts inline: formats
// Gemini cannot read (TIFF) and images larger than MaxModelDimension are
// re-encoded as JPEG. Anything else is returned unchanged.
func PrepareForModel(img Image) (Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image header for %s: %w", img.Name, err)
	}

	if modelNativeTypes[img.MIMEType] && cfg.Width <= MaxModelDimension && cfg.Height <= MaxModelDimension {
		return img, nil
	}

	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return Image{}, fmt.Errorf("failed to decode %s: %w", img.Name, err)
	}
	src = downscale(src, MaxModelDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 90}); err != nil {
		return Image{}, fmt.Errorf("failed to encode %s as JPEG: %w", img.Name, err)
	}

	log.Debug().
		Str("file", img.Name).
		Str("source_mime", img.MIMEType).
		Int("orig_width", cfg.Width).
		Int("orig_height", cfg.Height).
		Int("output_size", buf.Len()).
		Msg("Image re-encoded for model upload")

	return Image{Name: img.Name, MIMEType: "image/jpeg", Data: buf.Bytes()}, nil
}

// downscale returns src resized so its longest edge is at most maxDimension.
func downscale(src image.Image, maxDimension int) image.Image {
	b := src.Bounds()
	w, h := scaledDimensions(b.Dx(), b.Dy(), maxDimension)
	if w == b.Dx() && h == b.Dy() {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// scaledDimensions keeps the aspect ratio while fitting within maxDimension.
func scaledDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}
	if width > height {
		return maxDimension, max(1, int(float64(height)*float64(maxDimension)/float64(width)))
	}
	return max(1, int(float64(width)*float64(maxDimension)/float64(height))), maxDimension
}
