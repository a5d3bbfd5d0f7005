package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"math"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Defaults applied by NewImageCache.
const (
	DefaultDecodeTimeout = 30 * time.Second
	DefaultMaxPixels     = 50_000_000
)

// ErrTooLarge is returned when a source declares more pixels than the cache allows.
var ErrTooLarge = errors.New("image exceeds pixel limit")

// DecodedImage is a fully decoded raster ready to be drawn.
//
// DecodedImage values are shared between every caller that loads the same
// locator and must be treated as read-only.
type DecodedImage struct {
	// Locator is the key the image was loaded under.
	Locator string

	// Image is the decoded pixel data, already rotated per EXIF orientation.
	Image image.Image

	// Width and Height are the oriented pixel dimensions, always positive.
	Width  int
	Height int

	// Format is the decoder name reported by the image package ("png", "jpeg", ...).
	Format string

	// SizeBytes is the length of the encoded source.
	SizeBytes int
}

// DecodeError reports which locator of a batch could not be loaded.
type DecodeError struct {
	Index   int
	Locator string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to load image %d (%s): %v", e.Index, shortLocator(e.Locator), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// shortLocator keeps data: URIs from flooding error messages.
func shortLocator(locator string) string {
	const limit = 64
	if len(locator) <= limit {
		return locator
	}
	return locator[:limit] + "..."
}

// ImageCache provides thread-safe caching of decoded images keyed by locator.
//
// The cache is created by the host and passed to whoever needs images; there is
// no package-level instance. Entries are never evicted implicitly: they live as
// long as the cache unless the host calls Evict or Clear.
//
// Concurrent requests for the same uncached locator share a single fetch and
// decode. Each decode runs under its own timeout and is detached from the
// caller's context, so a caller that gives up early does not abort work another
// caller may be waiting on; the finished image is still cached.
//
// # Example Usage
//
//	cache := imaging.NewImageCache(imaging.WithDecodeTimeout(10 * time.Second))
//	imgs, err := cache.Load(ctx, []string{"/tmp/a.png", "/tmp/b.jpg"})
//	if err != nil {
//	    var de *imaging.DecodeError
//	    if errors.As(err, &de) {
//	        log.Printf("image %d is broken", de.Index)
//	    }
//	}
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]*DecodedImage

	group     singleflight.Group
	resolver  Resolver
	timeout   time.Duration
	maxPixels int
}

// Option configures an ImageCache.
type Option func(*ImageCache)

// WithResolver sets how locators are turned into bytes. The default is a
// DefaultResolver without a blob store.
func WithResolver(r Resolver) Option {
	return func(c *ImageCache) { c.resolver = r }
}

// WithDecodeTimeout bounds the fetch and decode of a single locator.
func WithDecodeTimeout(d time.Duration) Option {
	return func(c *ImageCache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxPixels rejects sources whose declared width*height exceeds n.
func WithMaxPixels(n int) Option {
	return func(c *ImageCache) {
		if n > 0 {
			c.maxPixels = n
		}
	}
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache(opts ...Option) *ImageCache {
	c := &ImageCache{
		images:    make(map[string]*DecodedImage),
		resolver:  &DefaultResolver{},
		timeout:   DefaultDecodeTimeout,
		maxPixels: DefaultMaxPixels,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load resolves every locator to a decoded image, preserving order.
//
// Uncached locators are decoded concurrently. If any locator fails the whole
// call fails with a *DecodeError naming the first failure and no images are
// returned; images that did decode remain cached for the next attempt.
func (c *ImageCache) Load(ctx context.Context, locators []string) ([]*DecodedImage, error) {
	out := make([]*DecodedImage, len(locators))

	g, gctx := errgroup.WithContext(ctx)
	for i, locator := range locators {
		i, locator := i, locator
		g.Go(func() error {
			img, err := c.Get(gctx, locator)
			if err != nil {
				return &DecodeError{Index: i, Locator: locator, Err: err}
			}
			out[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns the decoded image for a single locator, decoding it on first use.
//
// If ctx ends before the decode finishes, Get returns ctx.Err(); the decode
// itself carries on and its result is cached.
func (c *ImageCache) Get(ctx context.Context, locator string) (*DecodedImage, error) {
	if img, ok := c.lookup(locator); ok {
		return img, nil
	}

	ch := c.group.DoChan(locator, func() (interface{}, error) {
		// Another flight may have finished between lookup and DoChan.
		if img, ok := c.lookup(locator); ok {
			return img, nil
		}

		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		img, err := c.decode(dctx, locator)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.images[locator] = img
		c.mu.Unlock()
		return img, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*DecodedImage), nil
	}
}

func (c *ImageCache) lookup(locator string) (*DecodedImage, bool) {
	c.mu.RLock()
	img, ok := c.images[locator]
	c.mu.RUnlock()
	return img, ok
}

// decode runs resolveAndDecode but gives up once ctx expires, even if the
// resolver ignores cancellation. A late result is discarded.
func (c *ImageCache) decode(ctx context.Context, locator string) (*DecodedImage, error) {
	type outcome struct {
		img *DecodedImage
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		img, err := c.resolveAndDecode(ctx, locator)
		done <- outcome{img, err}
	}()

	select {
	case o := <-done:
		return o.img, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("decode did not finish within %s: %w", c.timeout, ctx.Err())
	}
}

func (c *ImageCache) resolveAndDecode(ctx context.Context, locator string) (*DecodedImage, error) {
	data, err := c.resolver.Resolve(ctx, locator)
	if err != nil {
		return nil, err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("failed to decode image: invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Width*cfg.Height > c.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d > %d pixels", ErrTooLarge, cfg.Width, cfg.Height, c.maxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	return &DecodedImage{
		Locator:   locator,
		Image:     img,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Format:    format,
		SizeBytes: len(data),
	}, nil
}

// Len reports the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear removes all images from the cache, freeing the associated memory.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]*DecodedImage)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its locator.
//
// If the locator is not in the cache, this method does nothing.
func (c *ImageCache) Evict(locator string) {
	c.mu.Lock()
	delete(c.images, locator)
	c.mu.Unlock()
}

// ImageInfo contains metadata about a loaded image.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// AspectRatio is Width/Height rounded to four decimals.
	AspectRatio float64 `json:"aspect_ratio"`

	// Format is the detected image format from the file contents: "png",
	// "jpeg", "gif", "bmp", "tiff" or "webp".
	Format string `json:"format"`

	// ColorDepth indicates the bit depth per channel: "8-bit" or "16-bit".
	ColorDepth string `json:"color_depth"`

	// HasAlpha indicates whether the image has an alpha (transparency) channel.
	HasAlpha bool `json:"has_alpha"`

	// SizeBytes is the size of the encoded source in bytes.
	SizeBytes int `json:"size_bytes"`
}

// LoadImageInfo loads an image into the cache (if not already cached) and
// returns its metadata.
//
// # Color Depth Detection
//
// Color depth is determined by the Go image type:
//   - *image.RGBA64, *image.NRGBA64, *image.Gray16 -> "16-bit"
//   - All other types -> "8-bit"
func LoadImageInfo(ctx context.Context, cache *ImageCache, locator string) (*ImageInfo, error) {
	img, err := cache.Get(ctx, locator)
	if err != nil {
		return nil, err
	}

	hasAlpha := false
	colorDepth := "8-bit"
	switch img.Image.(type) {
	case *image.RGBA, *image.NRGBA:
		hasAlpha = true
	case *image.RGBA64, *image.NRGBA64:
		hasAlpha = true
		colorDepth = "16-bit"
	case *image.Gray16:
		colorDepth = "16-bit"
	}

	return &ImageInfo{
		Width:       img.Width,
		Height:      img.Height,
		AspectRatio: math.Round(float64(img.Width)/float64(img.Height)*10000) / 10000,
		Format:      img.Format,
		ColorDepth:  colorDepth,
		HasAlpha:    hasAlpha,
		SizeBytes:   img.SizeBytes,
	}, nil
}

// DimensionsResult contains the width and height of an image.
type DimensionsResult struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GetDimensions returns the dimensions of an image without additional metadata.
func GetDimensions(ctx context.Context, cache *ImageCache, locator string) (*DimensionsResult, error) {
	img, err := cache.Get(ctx, locator)
	if err != nil {
		return nil, err
	}
	return &DimensionsResult{Width: img.Width, Height: img.Height}, nil
}
