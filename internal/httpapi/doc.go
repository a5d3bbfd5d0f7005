// Package httpapi exposes image merging over HTTP using gin.
//
// Routes:
//   - GET /api/health: liveness and cache statistics
//   - POST /api/merge: merge and return the image as an attachment
//   - POST /api/preview: debounced preview-size merge returned as a data: URI
//   - DELETE /api/cache: drop decoded images
//
// Merge requests are either multipart forms, with files uploaded under
// "images", or JSON bodies whose "images" are data: URIs, http(s) URLs or
// blob: locators of earlier uploads. Server-side paths are rejected.
//
// Errors are returned as {"error": "..."} with 400 for bad input, 422 when an
// image cannot be decoded, 409 when a newer preview superseded the request
// and 500 for anything else.
package httpapi
