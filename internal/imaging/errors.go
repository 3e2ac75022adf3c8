package imaging

import (
	"errors"
	"fmt"
	"math"
)

// Error taxonomy shared by the thresholder, the labeler and the counting
// orchestrator. All three are local, synchronous and non-retryable; callers
// test for them with errors.Is.
var (
	// ErrAllocationFailure reports that a scratch buffer (mask, visited map
	// or traversal arena) could not be obtained within MaxScratchPixels.
	ErrAllocationFailure = errors.New("allocation failure")

	// ErrInvalidFrameShape reports a pixel buffer whose length does not match
	// width*height*bytesPerPixel, or non-positive dimensions.
	ErrInvalidFrameShape = errors.New("invalid frame shape")

	// ErrInvalidConfig reports an out-of-range threshold, inverted area
	// bounds or a negative tolerance.
	ErrInvalidConfig = errors.New("invalid config")
)

// MaxScratchPixels bounds every per-call scratch buffer (16 MP). Larger
// frames are refused with ErrAllocationFailure before anything is allocated.
const MaxScratchPixels = 1 << 24

// ScratchSize returns width*height when a scratch buffer of that many
// entries may be allocated.
//
// Returns ErrInvalidFrameShape for non-positive dimensions and
// ErrAllocationFailure when the product overflows or exceeds MaxScratchPixels.
func ScratchSize(width, height int) (int, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFrameShape, width, height)
	}
	if width > math.MaxInt32/height {
		return 0, fmt.Errorf("%w: %dx%d overflows scratch index", ErrAllocationFailure, width, height)
	}
	n := width * height
	if n > MaxScratchPixels {
		return 0, fmt.Errorf("%w: %d pixels exceeds scratch budget of %d", ErrAllocationFailure, n, MaxScratchPixels)
	}
	return n, nil
}
