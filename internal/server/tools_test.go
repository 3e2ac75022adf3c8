package server

import (
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	expectedTools := []string{
		"frame_load",
		"count_objects",
		"label_blobs",
		"threshold_preview",
		"annotate_blobs",
		"luma_histogram",
		"sample_luma",
		"count_history",
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		if _, dup := toolMap[tool.Name]; dup {
			t.Errorf("duplicate tool %s", tool.Name)
		}
		toolMap[tool.Name] = tool
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("Tool count: got %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("missing tool %s", name)
		}
	}
}

func TestToolDefinitions_Schemas(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("empty description")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("schema type: got %v", tool.InputSchema["type"])
			}
			props, ok := tool.InputSchema["properties"].(map[string]interface{})
			if !ok {
				t.Fatal("properties should be a map")
			}

			required, _ := tool.InputSchema["required"].([]string)
			for _, r := range required {
				if _, ok := props[r]; !ok {
					t.Errorf("required parameter %s has no property", r)
				}
			}
		})
	}
}

func TestToolDefinitions_CountingParameters(t *testing.T) {
	counting := []string{"threshold", "polarity", "min_area", "max_area", "smart_mode", "area_tolerance", "aspect_tolerance"}

	for _, tool := range GetToolDefinitions() {
		if tool.Name != "count_objects" && tool.Name != "annotate_blobs" {
			continue
		}
		props := tool.InputSchema["properties"].(map[string]interface{})
		for _, p := range counting {
			if _, ok := props[p]; !ok {
				t.Errorf("%s: missing parameter %s", tool.Name, p)
			}
		}
		if _, ok := props["region"]; !ok {
			t.Errorf("%s: missing region", tool.Name)
		}
	}
}

func TestToolDefinitions_Polarity(t *testing.T) {
	props := thresholdProperties()
	polarity, ok := props["polarity"].(map[string]interface{})
	if !ok {
		t.Fatal("polarity should be a map")
	}
	enum, ok := polarity["enum"].([]string)
	if !ok || len(enum) != 2 || enum[0] != "dark" || enum[1] != "bright" {
		t.Errorf("polarity enum: got %v", polarity["enum"])
	}
}

func TestHandleToolsList(t *testing.T) {
	s := New(nil, nil)
	resp := s.handleToolsList(&MCPRequest{JSONRPC: "2.0", ID: 1})

	if resp == nil {
		t.Fatal("handleToolsList returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	toolsList, ok := result["tools"].([]Tool)
	if !ok {
		t.Fatal("tools should be a slice of Tool")
	}
	if len(toolsList) != len(GetToolDefinitions()) {
		t.Errorf("Tool count: got %d, want %d", len(toolsList), len(GetToolDefinitions()))
	}
}
