package compose

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/disintegration/imaging"
)

// Size presets. The preview and final sizes are what an interactive client
// uses for the live preview and for the downloadable image.
const (
	DefaultGap       = 10
	DefaultMaxSize   = 2000
	PreviewMaxSize   = 800
	FinalMaxSize     = 2500
	DefaultMaxPixels = 100_000_000
)

var (
	ErrCanvasTooLarge = errors.New("canvas exceeds pixel limit")
	ErrUnknownFilter  = errors.New("unknown resample filter")
)

// Options controls a merge. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	// Gap is the spacing in pixels between neighbouring images.
	Gap int

	// MaxSize bounds the dominant axis: the strip height for Horizontal, the
	// strip width for Vertical and the total column width for Grid.
	MaxSize int

	// Background fills the canvas, including gaps and grid letterboxing.
	// Nil means transparent (white when the format has no alpha channel).
	Background color.Color

	// Filter names the resampling filter; see ParseFilter. Empty means Lanczos.
	Filter string

	Format  Format
	Quality float64

	// MaxPixels caps width*height of the canvas. Zero means DefaultMaxPixels.
	MaxPixels int
}

// DefaultOptions returns the library defaults: 10px gap, 2000px max size,
// transparent PNG, Lanczos resampling.
func DefaultOptions() Options {
	return Options{
		Gap:     DefaultGap,
		MaxSize: DefaultMaxSize,
		Filter:  "lanczos",
		Format:  PNG,
		Quality: DefaultQuality,
	}
}

// PreviewOptions returns DefaultOptions sized for an on-screen preview.
func PreviewOptions() Options {
	o := DefaultOptions()
	o.MaxSize = PreviewMaxSize
	return o
}

// FinalOptions returns DefaultOptions sized for the downloadable result.
func FinalOptions() Options {
	o := DefaultOptions()
	o.MaxSize = FinalMaxSize
	return o
}

// ParseFilter maps a filter name to an imaging resample filter.
func ParseFilter(name string) (imaging.ResampleFilter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "lanczos":
		return imaging.Lanczos, nil
	case "catmullrom":
		return imaging.CatmullRom, nil
	case "linear":
		return imaging.Linear, nil
	case "box":
		return imaging.Box, nil
	case "nearest":
		return imaging.NearestNeighbor, nil
	default:
		return imaging.ResampleFilter{}, fmt.Errorf("%w: %q", ErrUnknownFilter, name)
	}
}

// Compose merges images into one encoded raster.
//
// images are drawn in order according to mode. An empty images slice returns
// an empty Result without allocating a canvas. Any failure returns a nil
// Result; there is no partial output.
func Compose(images []image.Image, mode Mode, opts Options) (*Result, error) {
	format, err := ParseFormat(string(opts.Format))
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return &Result{Format: format}, nil
	}

	sizes := make([]image.Point, len(images))
	for i, img := range images {
		if img == nil {
			return nil, fmt.Errorf("%w: image %d is nil", ErrEmptyImage, i)
		}
		sizes[i] = img.Bounds().Size()
	}

	layout, err := Plan(sizes, mode, opts.Gap, opts.MaxSize)
	if err != nil {
		return nil, err
	}

	canvas, err := Render(images, layout, opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, canvas, format, opts.Quality); err != nil {
		return nil, err
	}

	return &Result{
		Data:   buf.Bytes(),
		Width:  layout.Width,
		Height: layout.Height,
		Format: format,
		Layout: layout,
	}, nil
}

// Render draws images onto a fresh canvas following layout. layout must have
// been planned from the same images.
func Render(images []image.Image, layout *Layout, opts Options) (*image.RGBA, error) {
	if len(images) != len(layout.Placements) {
		return nil, fmt.Errorf("layout has %d placements for %d images", len(layout.Placements), len(images))
	}
	if layout.Width <= 0 || layout.Height <= 0 {
		return nil, fmt.Errorf("%w: canvas is %dx%d", ErrEmptyImage, layout.Width, layout.Height)
	}

	limit := opts.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	if layout.Width > limit/layout.Height {
		return nil, fmt.Errorf("%w: %dx%d > %d pixels", ErrCanvasTooLarge, layout.Width, layout.Height, limit)
	}

	filter, err := ParseFilter(opts.Filter)
	if err != nil {
		return nil, err
	}
	format, err := ParseFormat(string(opts.Format))
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, layout.Width, layout.Height))
	if bg := background(opts.Background, format); bg != nil {
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	}

	for _, p := range layout.Placements {
		src := images[p.Index]
		w, h := p.Rect.Dx(), p.Rect.Dy()

		var scaled image.Image = src
		if sb := src.Bounds(); sb.Dx() != w || sb.Dy() != h {
			scaled = imaging.Resize(src, w, h, filter)
		}
		draw.Draw(canvas, p.Rect, scaled, scaled.Bounds().Min, draw.Over)
	}

	return canvas, nil
}

// background resolves the canvas fill; nil leaves the canvas transparent.
func background(bg color.Color, format Format) color.Color {
	if !format.HasAlpha() {
		if bg == nil {
			return color.White
		}
		if _, _, _, a := bg.RGBA(); a != 0xffff {
			return flatten(bg, color.White)
		}
	}
	if bg == nil {
		return nil
	}
	if _, _, _, a := bg.RGBA(); a == 0 {
		return nil
	}
	return bg
}

// flatten composites c over an opaque base.
func flatten(c, base color.Color) color.Color {
	dst := image.NewRGBA(image.Rect(0, 0, 1, 1))
	dst.Set(0, 0, base)
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Over)
	return dst.At(0, 0)
}
