package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/object-counter/internal/detection"
	"github.com/ironsheep/object-counter/internal/imaging"
	"github.com/ironsheep/object-counter/internal/monitoring"
	"github.com/ironsheep/object-counter/internal/store"
)

// errNoHistory is returned by count_history when no store is configured.
var errNoHistory = errors.New("count history is not configured")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "count_objects").
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
// A failed count is never reported as a zero count.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
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
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	case "frame_load":
		return s.handleFrameLoad(args)

	// Counting
	case "count_objects":
		return s.handleCountObjects(args)
	case "label_blobs":
		return s.handleLabelBlobs(args)

	// Diagnostics
	case "threshold_preview":
		return s.handleThresholdPreview(args)
	case "annotate_blobs":
		return s.handleAnnotateBlobs(args)
	case "luma_histogram":
		return s.handleLumaHistogram(args)
	case "sample_luma":
		return s.handleSampleLuma(args)

	case "count_history":
		return s.handleCountHistory(args)

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
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// frameArgs are the arguments shared by every frame-based tool. Nil fields
// fall back to the configured defaults.
type frameArgs struct {
	Path       string          `json:"path"`
	Region     *imaging.Region `json:"region"`
	MaxWidth   *int            `json:"max_width"`
	MaxHeight  *int            `json:"max_height"`
	BlurRadius *float64        `json:"blur_radius"`
}

// countArgs adds the counting configuration.
type countArgs struct {
	frameArgs
	Threshold       *int     `json:"threshold"`
	Polarity        *string  `json:"polarity"`
	MinArea         *int     `json:"min_area"`
	MaxArea         *int     `json:"max_area"`
	SmartMode       *bool    `json:"smart_mode"`
	AreaTolerance   *float64 `json:"area_tolerance"`
	AspectTolerance *float64 `json:"aspect_tolerance"`
}

// resolve overlays the call's arguments on the configured defaults.
func (s *Server) resolve(a countArgs) (detection.Config, imaging.FrameOptions, error) {
	d := *s.defaults

	if a.MaxWidth != nil {
		d.MaxWidth = a.MaxWidth
	}
	if a.MaxHeight != nil {
		d.MaxHeight = a.MaxHeight
	}
	if a.BlurRadius != nil {
		d.BlurRadius = a.BlurRadius
	}
	if a.Threshold != nil {
		d.Threshold = a.Threshold
	}
	if a.Polarity != nil {
		if _, err := imaging.ParsePolarity(*a.Polarity); err != nil {
			return detection.Config{}, imaging.FrameOptions{}, err
		}
		d.Polarity = a.Polarity
	}
	if a.MinArea != nil {
		d.MinArea = a.MinArea
	}
	if a.MaxArea != nil {
		d.MaxArea = a.MaxArea
	}
	if a.SmartMode != nil {
		d.SmartMode = a.SmartMode
	}
	if a.AreaTolerance != nil {
		d.AreaTolerance = a.AreaTolerance
	}
	if a.AspectTolerance != nil {
		d.AspectTolerance = a.AspectTolerance
	}

	opts := d.FrameOptions()
	opts.Region = a.Region
	return d.CountConfig(), opts, nil
}

// loadFrame decodes (or reuses) the image at path and prepares the frame.
func (s *Server) loadFrame(a countArgs) (imaging.Frame, detection.Config, error) {
	cfg, opts, err := s.resolve(a)
	if err != nil {
		return imaging.Frame{}, cfg, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return imaging.Frame{}, cfg, err
	}
	monitoring.Debugf("loaded %s (%d frames cached)", a.Path, s.cache.Len())
	frame, err := imaging.FrameFromImage(img, opts)
	if err != nil {
		return imaging.Frame{}, cfg, err
	}
	return frame, cfg, nil
}

func (s *Server) parseCountArgs(args json.RawMessage) (countArgs, error) {
	var a countArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return a, err
	}
	if a.Path == "" {
		return a, errors.New("path is required")
	}
	return a, nil
}

// === Frame Handlers ===

type frameLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleFrameLoad(args json.RawMessage) (interface{}, error) {
	var a frameLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadFrameInfo(s.cache, a.Path)
}

// === Counting Handlers ===

// countObjectsResult extends the engine result with the resolved config
// and area statistics of the counted blobs.
type countObjectsResult struct {
	*detection.CountResult
	Sizes    []int               `json:"sizes"`
	Stats    detection.AreaStats `json:"stats"`
	Config   detection.Config    `json:"config"`
	RecordID string              `json:"record_id,omitempty"`
}

func (s *Server) handleCountObjects(args json.RawMessage) (interface{}, error) {
	a, err := s.parseCountArgs(args)
	if err != nil {
		return nil, err
	}
	frame, cfg, err := s.loadFrame(a)
	if err != nil {
		return nil, err
	}

	res, err := detection.CountObjects(frame, cfg)
	if err != nil {
		return nil, err
	}

	out := &countObjectsResult{
		CountResult: res,
		Sizes:       detection.Sizes(res.Blobs),
		Stats:       detection.SummarizeAreas(res.Blobs),
		Config:      cfg,
	}

	if s.history != nil {
		rec := store.NewCountRecord(a.Path, cfg, res)
		if err := s.history.RecordCount(context.Background(), rec); err != nil {
			monitoring.Logf("failed to record count for %s: %v", a.Path, err)
		} else {
			out.RecordID = rec.ID
		}
	}
	return out, nil
}

// labelBlobsResult is the unfiltered labeling of a frame.
type labelBlobsResult struct {
	Width     int                 `json:"width"`
	Height    int                 `json:"height"`
	Count     int                 `json:"count"`
	Blobs     []detection.Blob    `json:"blobs"`
	Truncated bool                `json:"truncated"`
	Stats     detection.AreaStats `json:"stats"`
}

func (s *Server) handleLabelBlobs(args json.RawMessage) (interface{}, error) {
	a, err := s.parseCountArgs(args)
	if err != nil {
		return nil, err
	}
	frame, cfg, err := s.loadFrame(a)
	if err != nil {
		return nil, err
	}

	mask, err := imaging.Threshold(frame, cfg.Threshold, cfg.Polarity)
	if err != nil {
		return nil, err
	}
	blobs, err := detection.Label(mask)
	if err != nil {
		return nil, err
	}

	out := &labelBlobsResult{
		Width:  frame.Width,
		Height: frame.Height,
		Count:  len(blobs),
		Blobs:  blobs,
		Stats:  detection.SummarizeAreas(blobs),
	}
	if out.Blobs == nil {
		out.Blobs = []detection.Blob{}
	}
	if len(out.Blobs) > detection.MaxResultBlobs {
		out.Blobs = out.Blobs[:detection.MaxResultBlobs]
		out.Truncated = true
	}
	return out, nil
}

// === Diagnostic Handlers ===

func (s *Server) handleThresholdPreview(args json.RawMessage) (interface{}, error) {
	a, err := s.parseCountArgs(args)
	if err != nil {
		return nil, err
	}
	frame, cfg, err := s.loadFrame(a)
	if err != nil {
		return nil, err
	}

	mask, err := imaging.Threshold(frame, cfg.Threshold, cfg.Polarity)
	if err != nil {
		return nil, err
	}
	return imaging.MaskPreview(mask)
}

type annotateArgs struct {
	countArgs
	ShowLabels *bool `json:"show_labels"`
}

// annotateResult pairs the overlay with the count it shows.
type annotateResult struct {
	*imaging.AnnotateResult
	Count     int  `json:"count"`
	Truncated bool `json:"truncated"`
}

func (s *Server) handleAnnotateBlobs(args json.RawMessage) (interface{}, error) {
	var a annotateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	showLabels := true
	if a.ShowLabels != nil {
		showLabels = *a.ShowLabels
	}

	frame, cfg, err := s.loadFrame(a.countArgs)
	if err != nil {
		return nil, err
	}
	res, err := detection.CountObjects(frame, cfg)
	if err != nil {
		return nil, err
	}

	// Boxes are in frame coordinates, so draw on the prepared frame rather
	// than the original file.
	gray, err := imaging.FrameImage(frame)
	if err != nil {
		return nil, err
	}
	overlay, err := imaging.AnnotateBoxes(gray, detection.Boxes(res.Blobs), showLabels)
	if err != nil {
		return nil, err
	}
	return &annotateResult{AnnotateResult: overlay, Count: res.Count, Truncated: res.Truncated}, nil
}

func (s *Server) handleLumaHistogram(args json.RawMessage) (interface{}, error) {
	a, err := s.parseCountArgs(args)
	if err != nil {
		return nil, err
	}
	frame, _, err := s.loadFrame(a)
	if err != nil {
		return nil, err
	}
	return imaging.LumaHistogram(frame)
}

type sampleLumaArgs struct {
	countArgs
	X int `json:"x"`
	Y int `json:"y"`
}

func (s *Server) handleSampleLuma(args json.RawMessage) (interface{}, error) {
	var a sampleLumaArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	frame, _, err := s.loadFrame(a.countArgs)
	if err != nil {
		return nil, err
	}
	return imaging.SampleLuma(frame, a.X, a.Y)
}

// === History Handlers ===

type countHistoryArgs struct {
	Limit int `json:"limit"`
}

func (s *Server) handleCountHistory(args json.RawMessage) (interface{}, error) {
	var a countHistoryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, errNoHistory
	}
	if a.Limit < 0 {
		return nil, fmt.Errorf("limit must be non-negative, got %d", a.Limit)
	}
	return s.history.ListCounts(context.Background(), a.Limit)
}
