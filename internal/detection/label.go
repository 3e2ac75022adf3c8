package detection

import (
	"github.com/ironsheep/object-counter/internal/imaging"
)

// Label partitions a mask into 4-connected blobs.
//
// Parameters:
//   - mask: binary mask from imaging.Threshold.
//
// Returns:
//   - []Blob: every component in discovery order (row-major scan of each
//     component's first pixel), unfiltered. The sum of areas equals
//     mask.Count().
//   - error: ErrInvalidFrameShape for a nil or ill-shaped mask,
//     ErrAllocationFailure if the traversal scratch cannot be sized.
//
// The fill is iterative. One int32 index stack of exactly width*height slots
// is allocated per call, and a pixel is marked visited when pushed, so the
// stack can never hold more than width*height entries. Diagonal neighbours
// are not connected.
func Label(mask *imaging.Mask) ([]Blob, error) {
	if err := mask.Validate(); err != nil {
		return nil, err
	}

	n, err := imaging.ScratchSize(mask.Width, mask.Height)
	if err != nil {
		return nil, err
	}

	w, h := mask.Width, mask.Height
	bits := mask.Bits
	visited := make([]bool, n)
	stack := make([]int32, n)

	var blobs []Blob
	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		visited[start] = true
		if !bits[start] {
			continue
		}

		b := Blob{MinX: start % w, MaxX: start % w, MinY: start / w, MaxY: start / w}
		stack[0] = int32(start)
		top := 1

		for top > 0 {
			top--
			p := int(stack[top])
			x, y := p%w, p/w

			b.Area++
			if x < b.MinX {
				b.MinX = x
			}
			if x > b.MaxX {
				b.MaxX = x
			}
			if y < b.MinY {
				b.MinY = y
			}
			if y > b.MaxY {
				b.MaxY = y
			}

			// left, right, up, down
			if x > 0 {
				if q := p - 1; !visited[q] && bits[q] {
					visited[q] = true
					stack[top] = int32(q)
					top++
				}
			}
			if x < w-1 {
				if q := p + 1; !visited[q] && bits[q] {
					visited[q] = true
					stack[top] = int32(q)
					top++
				}
			}
			if y > 0 {
				if q := p - w; !visited[q] && bits[q] {
					visited[q] = true
					stack[top] = int32(q)
					top++
				}
			}
			if y < h-1 {
				if q := p + w; !visited[q] && bits[q] {
					visited[q] = true
					stack[top] = int32(q)
					top++
				}
			}
		}

		blobs = append(blobs, b)
	}

	return blobs, nil
}
