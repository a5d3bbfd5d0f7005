package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/ironsheep/image-merge-mcp/internal/compose"
	"github.com/ironsheep/image-merge-mcp/internal/imaging"
)

// Config holds the server defaults. Tool arguments override them per call.
type Config struct {
	// Gap is the default spacing between images in pixels.
	Gap int

	// PreviewMaxSize and FinalMaxSize bound the dominant axis for preview and
	// final merges respectively.
	PreviewMaxSize int
	FinalMaxSize   int

	// Background is the default canvas colour, e.g. "#FFFFFF" or "transparent".
	Background string

	// DecodeTimeout bounds loading a single image.
	DecodeTimeout time.Duration

	// MaxImagePixels rejects a source image larger than this before decoding.
	MaxImagePixels int

	// MaxCanvasPixels caps width*height of a merged canvas.
	MaxCanvasPixels int

	// ToolTimeout bounds a whole tool call.
	ToolTimeout time.Duration

	// Debug enables per-call logging.
	Debug bool
}

// DefaultConfig returns the defaults used by New.
func DefaultConfig() Config {
	return Config{
		Gap:             compose.DefaultGap,
		PreviewMaxSize:  compose.PreviewMaxSize,
		FinalMaxSize:    compose.FinalMaxSize,
		Background:      "transparent",
		DecodeTimeout:   imaging.DefaultDecodeTimeout,
		MaxImagePixels:  imaging.DefaultMaxPixels,
		MaxCanvasPixels: compose.DefaultMaxPixels,
		ToolTimeout:     2 * time.Minute,
	}
}

// Server handles MCP protocol communication
type Server struct {
	cfg   Config
	cache *imaging.ImageCache
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a new MCP server instance with DefaultConfig.
func New() *Server {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a server with its own image cache.
func NewWithConfig(cfg Config) *Server {
	return &Server{
		cfg:   cfg,
		cache: imaging.NewImageCache(
			imaging.WithDecodeTimeout(cfg.DecodeTimeout),
			imaging.WithMaxPixels(cfg.MaxImagePixels),
		),
	}
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve processes newline-delimited JSON-RPC requests from r until EOF,
// writing responses to w.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// data: URIs of several images easily exceed the default token size
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 256*1024*1024)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			log.Printf("Failed to parse request: %v", err)
			continue
		}

		resp := s.handleRequest(&req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				log.Printf("Failed to encode response: %v", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "image-merge-mcp",
				"version": "0.1.0",
			},
		},
	}
}
