// Package server implements the MCP (Model Context Protocol) server for merging images.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_load: Load an image and report its size, aspect ratio and format
//   - image_dimensions: Get width and height
//   - image_merge: Merge 2 to 20 images horizontally, vertically or as a grid
//   - image_merge_plan: Compute the merge geometry without rendering
//   - image_cache_clear: Drop every decoded image
//
// Images are named by locator: a file path, a file:// or http(s) URL, or a
// base64 data: URI. Merge arguments fall back to the server Config, so
// "preview": true bounds the output by Config.PreviewMaxSize instead of
// Config.FinalMaxSize.
//
// # Image Caching
//
// Decoded images are cached by locator for the lifetime of the process or
// until image_cache_clear. Concurrent requests for the same locator share
// one decode.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: the Go error string
//
// # Usage
//
//	srv := server.New()
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
