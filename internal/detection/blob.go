package detection

import "github.com/ironsheep/object-counter/internal/imaging"

// Blob is one maximal 4-connected foreground region.
//
// The bounding box is inclusive and tight: every edge touches at least one
// member pixel.
type Blob struct {
	Area int `json:"area"`
	MinX int `json:"min_x"`
	MaxX int `json:"max_x"`
	MinY int `json:"min_y"`
	MaxY int `json:"max_y"`
}

// AspectRatio returns (MaxX-MinX)/(MaxY-MinY).
//
// The denominator is clamped to 1 so a blob one row tall reports its span
// instead of dividing by zero. A single pixel has aspect ratio 0.
func (b Blob) AspectRatio() float64 {
	dy := b.MaxY - b.MinY
	if dy < 1 {
		dy = 1
	}
	return float64(b.MaxX-b.MinX) / float64(dy)
}

// Width returns the bounding box width in pixels.
func (b Blob) Width() int { return b.MaxX - b.MinX + 1 }

// Height returns the bounding box height in pixels.
func (b Blob) Height() int { return b.MaxY - b.MinY + 1 }

// Box returns the bounding box for drawing.
func (b Blob) Box() imaging.Box {
	return imaging.Box{MinX: b.MinX, MinY: b.MinY, MaxX: b.MaxX, MaxY: b.MaxY}
}

// Boxes converts blobs to overlay boxes, preserving order.
func Boxes(blobs []Blob) []imaging.Box {
	boxes := make([]imaging.Box, len(blobs))
	for i, b := range blobs {
		boxes[i] = b.Box()
	}
	return boxes
}

// Sizes returns the area of each blob, preserving order.
func Sizes(blobs []Blob) []int {
	sizes := make([]int, len(blobs))
	for i, b := range blobs {
		sizes[i] = b.Area
	}
	return sizes
}
