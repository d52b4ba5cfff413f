// internal/img/thumb.go
package img

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// EncodeSpec describes a single encode attempt.
type EncodeSpec struct {
	Width   int
	Height  int
	Quality int
}

// Source is a decoded image together with the format it was stored in.
type Source struct {
	Image  image.Image
	Format imaging.Format
	Width  int
	Height int
}

// Open decodes the image at path, applying EXIF orientation. The output format
// is derived from the file extension.
func Open(path string) (*Source, error) {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return nil, fmt.Errorf("format: %w", err)
	}

	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	b := src.Bounds()
	return &Source{Image: src, Format: format, Width: b.Dx(), Height: b.Dy()}, nil
}

// Encode renders src into memory. The image is only resized when the requested box
// is smaller than the source in either dimension; it is never upscaled.
func Encode(src *Source, spec EncodeSpec) ([]byte, error) {
	out := src.Image
	if spec.Width < src.Width || spec.Height < src.Height {
		out = imaging.Fit(src.Image, spec.Width, spec.Height, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, src.Format, encodeOptions(src.Format, spec.Quality)...); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeOptions(format imaging.Format, quality int) []imaging.EncodeOption {
	switch format {
	case imaging.JPEG:
		return []imaging.EncodeOption{imaging.JPEGQuality(quality)}
	case imaging.PNG:
		return []imaging.EncodeOption{imaging.PNGCompressionLevel(pngLevel(quality))}
	default:
		return nil
	}
}

// pngLevel maps lower quality to stronger zlib compression. PNG stays lossless.
func pngLevel(quality int) png.CompressionLevel {
	if quality < 50 {
		return png.BestCompression
	}
	return png.DefaultCompression
}

// ThumbPrefix is the filename prefix shared by every thumbnail of the source
// file name.
func ThumbPrefix(sourceName string) string {
	base := filepath.Base(sourceName)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_THUMB_"
}

// ThumbName builds the cache-busting thumbnail file name for sourceName.
func ThumbName(sourceName string, stamp int64) string {
	return fmt.Sprintf("%s%d%s", ThumbPrefix(sourceName), stamp, filepath.Ext(sourceName))
}
