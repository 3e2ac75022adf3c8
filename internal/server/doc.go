// Package server implements the MCP (Model Context Protocol) server for
// object counting.
//
// The server exposes the counting engine and its diagnostics to MCP clients
// so an assistant can tune a counting setup against real images: load a
// frame, look at its histogram, preview the threshold mask, inspect raw
// blobs, then count.
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
//   - frame_load: Load an image and report dimensions and pixel budget
//   - count_objects: Threshold, label, filter and optionally group
//   - label_blobs: Every blob before area filtering
//   - threshold_preview: The binary mask as PNG
//   - annotate_blobs: Bounding boxes drawn over the prepared frame
//   - luma_histogram: Luma distribution with an Otsu suggestion
//   - sample_luma: Luma of one pixel
//   - count_history: Recent recorded counts
//
// Counting arguments that a call leaves out come from the configured
// counting defaults (see internal/config), never from engine internals.
//
// # Error Handling
//
// Tool execution errors, including every engine error, are returned as
// JSON-RPC error responses with code -32000 and the Go error string in
// data. A failed count is never reported as zero objects.
package server
