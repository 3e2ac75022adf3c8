package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// frameProperties describes the arguments every frame-based tool accepts.
func frameProperties() map[string]interface{} {
	return map[string]interface{}{
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the image file",
		},
		"region": map[string]interface{}{
			"type":        "object",
			"description": "Optional crop applied before counting, e.g. the tray area. (x1,y1) inclusive, (x2,y2) exclusive",
			"properties": map[string]interface{}{
				"x1": map[string]interface{}{"type": "integer"},
				"y1": map[string]interface{}{"type": "integer"},
				"x2": map[string]interface{}{"type": "integer"},
				"y2": map[string]interface{}{"type": "integer"},
			},
			"required": []string{"x1", "y1", "x2", "y2"},
		},
		"max_width": map[string]interface{}{
			"type":        "integer",
			"description": "Downscale so the frame is at most this wide. Defaults to the configured value",
		},
		"max_height": map[string]interface{}{
			"type":        "integer",
			"description": "Downscale so the frame is at most this tall. Defaults to the configured value",
		},
		"blur_radius": map[string]interface{}{
			"type":        "number",
			"description": "Gaussian blur radius applied before thresholding. 0 disables",
		},
	}
}

// thresholdProperties adds the binarization arguments.
func thresholdProperties() map[string]interface{} {
	props := frameProperties()
	props["threshold"] = map[string]interface{}{
		"type":        "integer",
		"description": "Luma cut-off 0-255. Defaults to the configured value",
	}
	props["polarity"] = map[string]interface{}{
		"type":        "string",
		"enum":        []string{"dark", "bright"},
		"description": "dark: pixels below threshold are objects. bright: pixels above threshold are objects",
	}
	return props
}

// countProperties adds the filtering and grouping arguments.
func countProperties() map[string]interface{} {
	props := thresholdProperties()
	props["min_area"] = map[string]interface{}{
		"type":        "integer",
		"description": "Smallest blob area in pixels that counts (inclusive)",
	}
	props["max_area"] = map[string]interface{}{
		"type":        "integer",
		"description": "Largest blob area in pixels that counts (inclusive)",
	}
	props["smart_mode"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Count only blobs that belong to a group of similar size and shape",
	}
	props["area_tolerance"] = map[string]interface{}{
		"type":        "number",
		"description": "Relative area difference allowed within a group, e.g. 0.3",
	}
	props["aspect_tolerance"] = map[string]interface{}{
		"type":        "number",
		"description": "Relative aspect ratio difference allowed within a group, e.g. 0.5",
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	annotateProps := countProperties()
	annotateProps["show_labels"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Draw the blob index next to each box. Default true",
		"default":     true,
	}

	sampleProps := frameProperties()
	sampleProps["x"] = map[string]interface{}{
		"type":        "integer",
		"description": "X coordinate in the prepared frame (0-based, from left)",
	}
	sampleProps["y"] = map[string]interface{}{
		"type":        "integer",
		"description": "Y coordinate in the prepared frame (0-based, from top)",
	}

	return []Tool{
		{
			Name:        "frame_load",
			Description: "Load an image file and report its dimensions, format and whether it fits the per-frame pixel budget.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "count_objects",
			Description: "Count objects in an image: threshold, label 4-connected blobs, filter by area and optionally keep only groups of similar blobs. Returns the count, blob geometry and area statistics.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": countProperties(),
				"required":   []string{"path"},
			},
		},
		{
			Name:        "label_blobs",
			Description: "List every foreground blob with its area and bounding box, before any area filtering. Use this to choose min_area and max_area.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": thresholdProperties(),
				"required":   []string{"path"},
			},
		},
		{
			Name:        "threshold_preview",
			Description: "Render the binary mask as base64 PNG (objects white) to check threshold and polarity.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": thresholdProperties(),
				"required":   []string{"path"},
			},
		},
		{
			Name:        "annotate_blobs",
			Description: "Count objects and return the prepared frame as base64 PNG with a coloured bounding box around each counted blob.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": annotateProps,
				"required":   []string{"path"},
			},
		},
		{
			Name:        "luma_histogram",
			Description: "256-bin luminance histogram of the prepared frame with an Otsu threshold suggestion.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": frameProperties(),
				"required":   []string{"path"},
			},
		},
		{
			Name:        "sample_luma",
			Description: "Get the luminance at one pixel of the prepared frame. Sample an object and its background to pick a threshold.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": sampleProps,
				"required":   []string{"path", "x", "y"},
			},
		},
		{
			Name:        "count_history",
			Description: "List recent counting results, newest first.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of records. Default 50",
						"default":     50,
					},
				},
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
