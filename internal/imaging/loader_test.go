package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// createTestImage creates a simple test image file and returns its path.
func createTestImage(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), "test-image-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer tmpFile.Close()

	if _, err := tmpFile.Write(encodeTestPNG(t, width, height, c)); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}
	return tmpFile.Name()
}

// encodeTestPNG returns PNG bytes of a solid-colour image.
func encodeTestPNG(t *testing.T, width, height int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

// countingResolver serves fixed bytes per locator and counts resolutions.
type countingResolver struct {
	mu    sync.Mutex
	data  map[string][]byte
	calls map[string]int
	delay time.Duration
}

func newCountingResolver() *countingResolver {
	return &countingResolver{data: make(map[string][]byte), calls: make(map[string]int)}
}

func (r *countingResolver) Resolve(ctx context.Context, locator string) ([]byte, error) {
	r.mu.Lock()
	r.calls[locator]++
	data, ok := r.data[locator]
	r.mu.Unlock()

	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if !ok {
		return nil, errors.New("no such locator")
	}
	return data, nil
}

func (r *countingResolver) count(locator string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[locator]
}

func TestNewImageCache(t *testing.T) {
	cache := NewImageCache()
	if cache == nil {
		t.Fatal("NewImageCache returned nil")
	}
	if cache.images == nil {
		t.Fatal("NewImageCache did not initialize images map")
	}
	if cache.timeout != DefaultDecodeTimeout {
		t.Errorf("timeout: got %s, want %s", cache.timeout, DefaultDecodeTimeout)
	}
}

func TestImageCache_Get(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 100, 60, color.RGBA{255, 0, 0, 255})

	img1, err := cache.Get(context.Background(), imgPath)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if img1.Width != 100 || img1.Height != 60 {
		t.Errorf("unexpected dimensions: got %dx%d, want 100x60", img1.Width, img1.Height)
	}
	if img1.Format != "png" {
		t.Errorf("Format: got %s, want png", img1.Format)
	}

	img2, err := cache.Get(context.Background(), imgPath)
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if img1 != img2 {
		t.Error("second Get did not return cached image")
	}
}

func TestImageCache_Load_PreservesOrder(t *testing.T) {
	res := newCountingResolver()
	res.data["a"] = encodeTestPNG(t, 10, 20, color.White)
	res.data["b"] = encodeTestPNG(t, 30, 40, color.White)
	res.data["c"] = encodeTestPNG(t, 50, 60, color.White)
	cache := NewImageCache(WithResolver(res))

	imgs, err := cache.Load(context.Background(), []string{"c", "a", "b"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(imgs) != 3 {
		t.Fatalf("got %d images, want 3", len(imgs))
	}

	want := []struct {
		locator string
		w, h    int
	}{{"c", 50, 60}, {"a", 10, 20}, {"b", 30, 40}}
	for i, w := range want {
		if imgs[i].Locator != w.locator || imgs[i].Width != w.w || imgs[i].Height != w.h {
			t.Errorf("image %d: got %s %dx%d, want %s %dx%d",
				i, imgs[i].Locator, imgs[i].Width, imgs[i].Height, w.locator, w.w, w.h)
		}
	}
}

func TestImageCache_Load_DecodesOnce(t *testing.T) {
	res := newCountingResolver()
	res.data["a"] = encodeTestPNG(t, 8, 8, color.Black)
	cache := NewImageCache(WithResolver(res))

	first, err := cache.Load(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, err := cache.Load(context.Background(), []string{"a", "a"})
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}

	if first[0] != second[0] || second[0] != second[1] {
		t.Error("same locator did not return the same DecodedImage")
	}
	if n := res.count("a"); n != 1 {
		t.Errorf("resolver called %d times, want 1", n)
	}
}

func TestImageCache_Load_SharesInFlightDecode(t *testing.T) {
	res := newCountingResolver()
	res.data["slow"] = encodeTestPNG(t, 4, 4, color.Black)
	res.delay = 50 * time.Millisecond
	cache := NewImageCache(WithResolver(res))

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Get(context.Background(), "slow"); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Errorf("%d concurrent Get calls failed", failures.Load())
	}
	if n := res.count("slow"); n != 1 {
		t.Errorf("resolver called %d times, want 1", n)
	}
}

func TestImageCache_Load_BatchFailure(t *testing.T) {
	res := newCountingResolver()
	res.data["good"] = encodeTestPNG(t, 4, 4, color.Black)
	res.data["corrupt"] = []byte("not an image")
	cache := NewImageCache(WithResolver(res))

	imgs, err := cache.Load(context.Background(), []string{"good", "corrupt"})
	if err == nil {
		t.Fatal("Load should fail when one locator is corrupt")
	}
	if imgs != nil {
		t.Error("Load returned a partial result on failure")
	}

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error is %T, want *DecodeError", err)
	}
	if de.Index != 1 || de.Locator != "corrupt" {
		t.Errorf("DecodeError: got index %d locator %q, want 1 \"corrupt\"", de.Index, de.Locator)
	}
}

func TestImageCache_Load_Missing(t *testing.T) {
	cache := NewImageCache()
	_, err := cache.Load(context.Background(), []string{"/nonexistent/path/to/image.png"})
	if err == nil {
		t.Error("Load should fail for non-existent file")
	}
	if cache.Len() != 0 {
		t.Errorf("failed load was cached: Len() = %d", cache.Len())
	}
}

func TestImageCache_Load_Empty(t *testing.T) {
	cache := NewImageCache()
	imgs, err := cache.Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("Load(nil) failed: %v", err)
	}
	if len(imgs) != 0 {
		t.Errorf("Load(nil) returned %d images", len(imgs))
	}
}

func TestImageCache_DecodeTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	hanging := ResolverFunc(func(ctx context.Context, locator string) ([]byte, error) {
		<-block // ignores ctx on purpose
		return nil, errors.New("unreachable")
	})
	cache := NewImageCache(WithResolver(hanging), WithDecodeTimeout(30*time.Millisecond))

	start := time.Now()
	_, err := cache.Load(context.Background(), []string{"stalled"})
	if err == nil {
		t.Fatal("Load should fail for a stalled source")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error should wrap context.DeadlineExceeded: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Load took %s, timeout not applied", elapsed)
	}
}

func TestImageCache_CallerCancelKeepsDecoding(t *testing.T) {
	res := newCountingResolver()
	res.data["a"] = encodeTestPNG(t, 4, 4, color.Black)
	res.delay = 40 * time.Millisecond
	cache := NewImageCache(WithResolver(res))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, err := cache.Get(ctx, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Get error: got %v, want deadline exceeded", err)
	}

	// The abandoned decode still completes and lands in the cache.
	deadline := time.Now().Add(time.Second)
	for cache.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if cache.Len() != 1 {
		t.Fatal("abandoned decode was not cached")
	}
	if _, err := cache.Get(context.Background(), "a"); err != nil {
		t.Fatalf("Get after abandon failed: %v", err)
	}
	if n := res.count("a"); n != 1 {
		t.Errorf("resolver called %d times, want 1", n)
	}
}

func TestImageCache_MaxPixels(t *testing.T) {
	res := newCountingResolver()
	res.data["big"] = encodeTestPNG(t, 100, 100, color.Black)
	cache := NewImageCache(WithResolver(res), WithMaxPixels(5000))

	_, err := cache.Get(context.Background(), "big")
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("error: got %v, want ErrTooLarge", err)
	}
}

func TestImageCache_Clear(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 50, 50, color.RGBA{0, 255, 0, 255})

	if _, err := cache.Get(context.Background(), imgPath); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	cache.Clear()

	if cache.Len() != 0 {
		t.Errorf("Clear did not empty cache: %d images remain", cache.Len())
	}
}

func TestImageCache_Evict(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 50, 50, color.RGBA{0, 0, 255, 255})

	if _, err := cache.Get(context.Background(), imgPath); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	cache.Evict(imgPath)

	cache.mu.RLock()
	_, exists := cache.images[imgPath]
	cache.mu.RUnlock()
	if exists {
		t.Error("Evict did not remove image from cache")
	}

	// Should not panic
	cache.Evict("/nonexistent/path")
}

func TestDecodeError_Message(t *testing.T) {
	long := "data:image/png;base64," + string(bytes.Repeat([]byte("A"), 200))
	err := &DecodeError{Index: 3, Locator: long, Err: errors.New("boom")}

	msg := err.Error()
	if len(msg) > 150 {
		t.Errorf("message not truncated: %d bytes", len(msg))
	}
	if !errors.Is(err, err.Err) {
		t.Error("DecodeError does not unwrap to its cause")
	}
}

func TestLoadImageInfo(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 200, 150, color.RGBA{255, 128, 64, 255})

	info, err := LoadImageInfo(context.Background(), cache, imgPath)
	if err != nil {
		t.Fatalf("LoadImageInfo failed: %v", err)
	}

	if info.Width != 200 {
		t.Errorf("Width: got %d, want 200", info.Width)
	}
	if info.Height != 150 {
		t.Errorf("Height: got %d, want 150", info.Height)
	}
	if info.AspectRatio != 1.3333 {
		t.Errorf("AspectRatio: got %v, want 1.3333", info.AspectRatio)
	}
	if info.Format != "png" {
		t.Errorf("Format: got %s, want png", info.Format)
	}
	if info.SizeBytes <= 0 {
		t.Error("SizeBytes should be positive")
	}
}

func TestLoadImageInfo_NonExistent(t *testing.T) {
	cache := NewImageCache()
	_, err := LoadImageInfo(context.Background(), cache, "/nonexistent/image.png")
	if err == nil {
		t.Error("LoadImageInfo should fail for non-existent file")
	}
}

func TestGetDimensions(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 300, 200, color.RGBA{100, 100, 100, 255})

	dims, err := GetDimensions(context.Background(), cache, imgPath)
	if err != nil {
		t.Fatalf("GetDimensions failed: %v", err)
	}

	if dims.Width != 300 {
		t.Errorf("Width: got %d, want 300", dims.Width)
	}
	if dims.Height != 200 {
		t.Errorf("Height: got %d, want 200", dims.Height)
	}
}
