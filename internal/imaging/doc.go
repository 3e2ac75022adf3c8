// Package imaging turns camera frames into binary foreground masks and
// renders the diagnostic images used to tune a counting setup.
//
// A Frame is either a raw sensor buffer (8-bit grayscale or big-endian
// RGB565) or the luma of a decoded PNG/JPEG/BMP/WebP capture. Threshold
// converts a Frame to a Mask; the detection package labels that Mask.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner,
// X increasing rightward and Y increasing downward. Buffers are row-major:
// pixel (x, y) is index y*Width+x. For a Region, (x1,y1) is inclusive and
// (x2,y2) is exclusive. A Box is inclusive on both corners.
//
// # Scratch Budget
//
// Every per-frame buffer is sized through ScratchSize, which refuses frames
// larger than MaxScratchPixels with ErrAllocationFailure. Callers that accept
// arbitrary uploads should set FrameOptions.MaxWidth and MaxHeight so large
// photos are downscaled instead of refused.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. All other functions are stateless
// and never retain or modify their inputs.
//
// # Error Handling
//
// Shape, configuration and budget failures wrap ErrInvalidFrameShape,
// ErrInvalidConfig and ErrAllocationFailure; test for them with errors.Is.
// I/O and encoding errors are wrapped with context.
package imaging
