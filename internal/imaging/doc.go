// Package imaging loads source images for merging and keeps them decoded.
//
// Images are addressed by opaque locator strings. The DefaultResolver accepts
// content-addressed "blob:" locators backed by a BlobStore, base64 "data:"
// URIs, http(s) URLs, "file://" URLs and plain filesystem paths. Decoding
// supports PNG, JPEG, GIF, BMP, TIFF and WebP and applies EXIF orientation.
//
// # Caching
//
// ImageCache memoizes decoded images by locator so that repeated merges (for
// example a live preview re-rendered on every layout change) never decode the
// same source twice. The cache is an explicit value owned by the host process;
// tests create isolated instances.
//
// # Thread Safety
//
// ImageCache and BlobStore are safe for concurrent use. DecodedImage values are
// shared between callers and must not be mutated.
//
// # Error Handling
//
// A batch Load either returns one decoded image per locator or fails as a
// whole with a *DecodeError that identifies the offending index and locator.
// Every decode is bounded by a timeout so an unreachable or stalled source
// cannot block the caller indefinitely.
package imaging
