package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

const locatorDescription = "Image locator: absolute file path, file:// or http(s) URL, or base64 data: URI"

// mergeProperties are shared by image_merge and image_merge_plan.
func mergeProperties() map[string]interface{} {
	return map[string]interface{}{
		"images": map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": "string", "description": locatorDescription},
			"minItems":    2,
			"maxItems":    20,
			"description": "Images to merge, in output order (left to right, top to bottom, or row by row)",
		},
		"layout": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"horizontal", "vertical", "grid"},
			"description": "Arrangement of the images",
			"default":     "horizontal",
		},
		"gap": map[string]interface{}{
			"type":        "integer",
			"description": "Spacing between images in pixels (default 10)",
			"default":     10,
		},
		"max_size": map[string]interface{}{
			"type":        "integer",
			"description": "Bound on the dominant axis in pixels. Defaults to 800 for previews and 2500 otherwise",
		},
		"preview": map[string]interface{}{
			"type":        "boolean",
			"description": "Use the smaller preview size instead of the final size",
			"default":     false,
		},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	mergeProps := mergeProperties()
	mergeProps["background"] = map[string]interface{}{
		"type":        "string",
		"description": "Canvas colour as #RGB, #RRGGBB or #RRGGBBAA, or \"transparent\"",
		"default":     "transparent",
	}
	mergeProps["format"] = map[string]interface{}{
		"type":        "string",
		"enum":        []string{"png", "jpeg", "bmp"},
		"description": "Output encoding",
		"default":     "png",
	}
	mergeProps["quality"] = map[string]interface{}{
		"type":        "number",
		"description": "Quality hint between 0 and 1 for lossy formats (default 0.9)",
		"default":     0.9,
	}
	mergeProps["filter"] = map[string]interface{}{
		"type":        "string",
		"enum":        []string{"lanczos", "catmullrom", "linear", "box", "nearest"},
		"description": "Resampling filter used when scaling images",
		"default":     "lanczos",
	}
	mergeProps["output_path"] = map[string]interface{}{
		"type":        "string",
		"description": "Optional file or directory to write the merged image to. When omitted the image is returned as base64",
	}

	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image and return its dimensions, aspect ratio and format. The decoded image is cached for later merges.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": locatorDescription,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": locatorDescription,
					},
				},
				"required": []string{"path"},
			},
		},

		// Merge Operations
		{
			Name:        "image_merge",
			Description: "Merge 2 to 20 images into a single image laid out horizontally, vertically or as a square grid. Returns the merged image as base64 or writes it to output_path.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": mergeProps,
				"required":   []string{"images"},
			},
		},
		{
			Name:        "image_merge_plan",
			Description: "Compute the canvas size and the position of every image for a merge without rendering it.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": mergeProperties(),
				"required":   []string{"images"},
			},
		},

		// Cache
		{
			Name:        "image_cache_clear",
			Description: "Drop all decoded images held by the server.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
