package imaging

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// Locator schemes understood by DefaultResolver.
const (
	BlobScheme = "blob:"
	DataScheme = "data:"
	FileScheme = "file://"
)

// maxFetchBytes caps the size of a single remote or embedded source.
const maxFetchBytes = 64 << 20

// ErrUnknownBlob is returned when a blob: locator is not present in the store.
var ErrUnknownBlob = errors.New("unknown blob locator")

// Resolver turns a locator into the raw, still-encoded image bytes.
//
// Implementations must honour ctx cancellation for anything that can block.
type Resolver interface {
	Resolve(ctx context.Context, locator string) ([]byte, error)
}

// ResolverFunc adapts an ordinary function to the Resolver interface.
type ResolverFunc func(ctx context.Context, locator string) ([]byte, error)

// Resolve calls f(ctx, locator).
func (f ResolverFunc) Resolve(ctx context.Context, locator string) ([]byte, error) {
	return f(ctx, locator)
}

// BlobStore holds uploaded image bytes in memory and hands out content-addressed
// "blob:<sha256>" locators for them, the same role a browser object URL plays.
//
// Identical uploads map to the same locator, so re-uploading a file reuses the
// decoded copy already held by an ImageCache. BlobStore is safe for concurrent use.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewBlobStore creates an empty blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string][]byte)}
}

// Put stores data and returns its locator. The slice is retained; callers must
// not modify it afterwards.
func (s *BlobStore) Put(data []byte) string {
	sum := sha256.Sum256(data)
	locator := BlobScheme + hex.EncodeToString(sum[:])

	s.mu.Lock()
	if _, ok := s.blobs[locator]; !ok {
		s.blobs[locator] = data
	}
	s.mu.Unlock()

	return locator
}

// Resolve returns the bytes registered for a blob: locator.
func (s *BlobStore) Resolve(_ context.Context, locator string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.blobs[locator]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBlob, locator)
	}
	return data, nil
}

// Len reports how many distinct blobs are stored.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// DefaultResolver resolves blob:, data:, http(s):// and file:// locators, and
// treats anything else as a filesystem path.
type DefaultResolver struct {
	// Blobs backs blob: locators. Nil means blob: locators always fail.
	Blobs *BlobStore

	// Client is used for http and https locators. Nil uses a client with a
	// 10 second timeout.
	Client *http.Client
}

// Resolve implements Resolver.
func (r *DefaultResolver) Resolve(ctx context.Context, locator string) ([]byte, error) {
	switch {
	case strings.HasPrefix(locator, BlobScheme):
		if r.Blobs == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownBlob, locator)
		}
		return r.Blobs.Resolve(ctx, locator)
	case strings.HasPrefix(locator, DataScheme):
		return decodeDataURI(locator)
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		return r.fetch(ctx, locator)
	case strings.HasPrefix(locator, FileScheme):
		u, err := url.Parse(locator)
		if err != nil {
			return nil, fmt.Errorf("invalid file locator: %w", err)
		}
		return readFile(u.Path)
	default:
		return readFile(locator)
	}
}

func (r *DefaultResolver) fetch(ctx context.Context, locator string) ([]byte, error) {
	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image: unexpected status %s", resp.Status)
	}
	return readLimited(resp.Body)
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return readLimited(f)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > maxFetchBytes {
		return nil, fmt.Errorf("image source exceeds %d bytes", maxFetchBytes)
	}
	return data, nil
}

// decodeDataURI extracts the payload of a data: URI. Only base64 payloads are
// accepted since image bytes are never sent percent-encoded in practice.
func decodeDataURI(uri string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, DataScheme), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI: missing ','")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("unsupported data URI encoding %q", meta)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("malformed data URI payload: %w", err)
	}
	if len(data) > maxFetchBytes {
		return nil, fmt.Errorf("image source exceeds %d bytes", maxFetchBytes)
	}
	return data, nil
}
