package compose

import (
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"strings"
	"time"

	"github.com/anthonynsimon/bild/imgio"
)

// Format is the encoding of the merged output.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	BMP  Format = "bmp"
)

// DefaultQuality is the quality hint used when none is given. It only affects
// lossy formats.
const DefaultQuality = 0.9

// FilenamePrefix starts every generated download name.
const FilenamePrefix = "MERGEIT_"

var ErrUnsupportedFormat = errors.New("unsupported output format")

// ParseFormat converts a format name or file extension. The empty string
// selects PNG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "bmp":
		return BMP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// MimeType returns the media type of the format.
func (f Format) MimeType() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case BMP:
		return "image/bmp"
	default:
		return "image/png"
	}
}

// Extension returns the file extension without a leading dot.
func (f Format) Extension() string {
	if f == "" {
		return string(PNG)
	}
	return string(f)
}

// HasAlpha reports whether the format can store transparency.
func (f Format) HasAlpha() bool {
	return f != JPEG
}

// Encode writes img to w in the given format. quality is a 0–1 hint; values
// outside that range fall back to DefaultQuality. It is ignored by lossless
// formats.
func Encode(w io.Writer, img image.Image, f Format, quality float64) error {
	var enc imgio.Encoder
	switch f {
	case PNG, "":
		enc = imgio.PNGEncoder()
	case JPEG:
		enc = imgio.JPEGEncoder(jpegQuality(quality))
	case BMP:
		enc = imgio.BMPEncoder()
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}

	if err := enc(w, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", f.Extension(), err)
	}
	return nil
}

func jpegQuality(q float64) int {
	if q <= 0 || q > 1 {
		q = DefaultQuality
	}
	return max(int(math.Round(q*100)), 1)
}

// Result is an encoded merge.
type Result struct {
	// Data holds the encoded image. It is empty for an empty merge.
	Data []byte

	// Width and Height are the canvas dimensions.
	Width  int
	Height int

	Format Format

	// Layout is the geometry the image was rendered from.
	Layout *Layout
}

// Empty reports whether the result carries no image.
func (r *Result) Empty() bool {
	return r == nil || len(r.Data) == 0
}

// MimeType returns the media type of the encoded data.
func (r *Result) MimeType() string {
	return r.Format.MimeType()
}

// Base64 returns the encoded data in standard base64.
func (r *Result) Base64() string {
	if r.Empty() {
		return ""
	}
	return base64.StdEncoding.EncodeToString(r.Data)
}

// DataURI returns the image as a data: URI suitable for direct display, or ""
// for an empty result.
func (r *Result) DataURI() string {
	if r.Empty() {
		return ""
	}
	return "data:" + r.MimeType() + ";base64," + r.Base64()
}

// Filename returns the download name for a merge produced at t, for example
// MERGEIT_1700000000000.png.
func (r *Result) Filename(t time.Time) string {
	return fmt.Sprintf("%s%d.%s", FilenamePrefix, t.UnixMilli(), r.Format.Extension())
}
