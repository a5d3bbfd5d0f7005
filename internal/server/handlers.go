package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ironsheep/image-merge-mcp/internal/compose"
	"github.com/ironsheep/image-merge-mcp/internal/imaging"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "image_merge").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ToolTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if s.cfg.Debug {
		log.Printf("tool %s finished in %s (err=%v)", params.Name, time.Since(start), err)
	}
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(ctx, args)
	case "image_dimensions":
		return s.handleImageDimensions(ctx, args)

	// Merge Operations
	case "image_merge":
		return s.handleImageMerge(ctx, args)
	case "image_merge_plan":
		return s.handleImageMergePlan(ctx, args)

	// Cache
	case "image_cache_clear":
		return s.handleImageCacheClear()

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(ctx, s.cache, a.Path)
}

func (s *Server) handleImageDimensions(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(ctx, s.cache, a.Path)
}

// === Merge Handlers ===

// MergeResult describes a finished merge.
type MergeResult struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Layout     string `json:"layout"`
	Cols       int    `json:"cols"`
	Rows       int    `json:"rows"`
	CellSize   int    `json:"cell_size,omitempty"`
	ImageCount int    `json:"image_count"`
	Background string `json:"background"`
	MimeType   string `json:"mime_type"`
	Filename   string `json:"filename"`
	SizeBytes  int    `json:"size_bytes"`

	// ImageBase64 is set when no output path was requested.
	ImageBase64 string `json:"image_base64,omitempty"`

	// OutputPath is the file the image was written to, if any.
	OutputPath string `json:"output_path,omitempty"`
}

func (s *Server) handleImageMerge(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a MergeRequest
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := compose.CheckCount(len(a.Images)); err != nil {
		return nil, err
	}
	mode, opts, err := s.cfg.MergeOptions(&a)
	if err != nil {
		return nil, err
	}

	decoded, err := s.cache.Load(ctx, a.Images)
	if err != nil {
		return nil, err
	}

	result, err := compose.Compose(sources(decoded), mode, opts)
	if err != nil {
		return nil, fmt.Errorf("merge failed: %w", err)
	}

	out := &MergeResult{
		Width:      result.Width,
		Height:     result.Height,
		Layout:     mode.String(),
		Cols:       result.Layout.Cols,
		Rows:       result.Layout.Rows,
		CellSize:   result.Layout.CellSize,
		ImageCount: len(decoded),
		Background: compose.FormatColor(opts.Background),
		MimeType:   result.MimeType(),
		Filename:   result.Filename(time.Now()),
		SizeBytes:  len(result.Data),
	}

	if a.OutputPath == "" {
		out.ImageBase64 = result.Base64()
		return out, nil
	}

	path, err := writeOutput(a.OutputPath, out.Filename, result.Data)
	if err != nil {
		return nil, err
	}
	out.OutputPath = path
	return out, nil
}

func (s *Server) handleImageMergePlan(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a MergeRequest
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := compose.CheckCount(len(a.Images)); err != nil {
		return nil, err
	}
	mode, opts, err := s.cfg.MergeOptions(&a)
	if err != nil {
		return nil, err
	}

	decoded, err := s.cache.Load(ctx, a.Images)
	if err != nil {
		return nil, err
	}

	sizes := make([]image.Point, len(decoded))
	for i, img := range decoded {
		sizes[i] = image.Pt(img.Width, img.Height)
	}
	return compose.Plan(sizes, mode, opts.Gap, opts.MaxSize)
}

func (s *Server) handleImageCacheClear() (interface{}, error) {
	n := s.cache.Len()
	s.cache.Clear()
	return map[string]int{"cleared": n}, nil
}

// sources unwraps decoded images for the compositor.
func sources(decoded []*imaging.DecodedImage) []image.Image {
	out := make([]image.Image, len(decoded))
	for i, d := range decoded {
		out[i] = d.Image
	}
	return out
}

// writeOutput writes data to path. If path names a directory (existing, or
// ending in a separator) the file is created inside it as filename.
func writeOutput(path, filename string, data []byte) (string, error) {
	if strings.HasSuffix(path, string(os.PathSeparator)) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, filename)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write output: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}
