package detection

import (
	"fmt"
	"math"

	"github.com/ironsheep/object-counter/internal/imaging"
)

// Errors returned by Label and CountObjects. They are the imaging sentinels,
// so errors.Is works no matter which package produced them.
var (
	ErrAllocationFailure = imaging.ErrAllocationFailure
	ErrInvalidFrameShape = imaging.ErrInvalidFrameShape
	ErrInvalidConfig     = imaging.ErrInvalidConfig
)

// MaxResultBlobs bounds CountResult.Blobs. Count is never truncated.
const MaxResultBlobs = 1024

// Config holds every counting parameter. There are no defaults: the zero
// value counts dark blobs of area exactly 0, which is nothing.
type Config struct {
	Threshold       int              `json:"threshold"`
	Polarity        imaging.Polarity `json:"polarity"`
	MinArea         int              `json:"min_area"`
	MaxArea         int              `json:"max_area"`
	SmartMode       bool             `json:"smart_mode"`
	AreaTolerance   float64          `json:"area_tolerance"`
	AspectTolerance float64          `json:"aspect_tolerance"`
}

// Validate reports the first out-of-range field wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 255 {
		return fmt.Errorf("%w: threshold %d outside [0,255]", ErrInvalidConfig, c.Threshold)
	}
	if c.Polarity != imaging.PolarityDark && c.Polarity != imaging.PolarityBright {
		return fmt.Errorf("%w: unknown polarity %d", ErrInvalidConfig, int(c.Polarity))
	}
	if c.MinArea < 0 {
		return fmt.Errorf("%w: min_area %d is negative", ErrInvalidConfig, c.MinArea)
	}
	if c.MinArea > c.MaxArea {
		return fmt.Errorf("%w: min_area %d exceeds max_area %d", ErrInvalidConfig, c.MinArea, c.MaxArea)
	}
	if !validTolerance(c.AreaTolerance) {
		return fmt.Errorf("%w: area_tolerance %v must be finite and >= 0", ErrInvalidConfig, c.AreaTolerance)
	}
	if !validTolerance(c.AspectTolerance) {
		return fmt.Errorf("%w: aspect_tolerance %v must be finite and >= 0", ErrInvalidConfig, c.AspectTolerance)
	}
	return nil
}

func validTolerance(v float64) bool {
	return v >= 0 && !math.IsInf(v, 1) && !math.IsNaN(v)
}

// CountResult is the outcome of one counting call.
type CountResult struct {
	// Count is the number of objects: filtered blobs, or the grouped count
	// in smart mode.
	Count int `json:"count"`

	// Blobs lists the counted blobs in discovery order, at most
	// MaxResultBlobs of them. In smart mode these are the members of groups
	// with two or more members.
	Blobs []Blob `json:"blobs"`

	// Width and Height are the frame dimensions.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Truncated reports that Blobs was cut at MaxResultBlobs.
	Truncated bool `json:"truncated"`
}

// CompatResult is the {count, sizes, w, h} JSON shape existing camera UIs
// poll for.
type CompatResult struct {
	Count int   `json:"count"`
	Sizes []int `json:"sizes"`
	W     int   `json:"w"`
	H     int   `json:"h"`
}

// Compat converts the result to the legacy wire shape.
func (r *CountResult) Compat() CompatResult {
	return CompatResult{Count: r.Count, Sizes: Sizes(r.Blobs), W: r.Width, H: r.Height}
}

// CountObjects counts the objects in a frame.
//
// Pipeline: validate config, threshold, label, filter by area, then either
// take the filtered length or, in smart mode, the grouped count.
//
// The frame is only read. All scratch is scoped to the call, there is no
// shared state, and equal inputs give equal results, so concurrent calls on
// different frames are safe. On error the result is nil; a zero Count always
// means nothing was found.
func CountObjects(frame imaging.Frame, cfg Config) (*CountResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mask, err := imaging.Threshold(frame, cfg.Threshold, cfg.Polarity)
	if err != nil {
		return nil, fmt.Errorf("threshold: %w", err)
	}

	blobs, err := Label(mask)
	if err != nil {
		return nil, fmt.Errorf("label: %w", err)
	}

	filtered := FilterByArea(blobs, cfg.MinArea, cfg.MaxArea)

	res := &CountResult{Width: frame.Width, Height: frame.Height}
	if cfg.SmartMode {
		member := make([]bool, len(filtered))
		for _, g := range Groups(filtered, cfg.AreaTolerance, cfg.AspectTolerance) {
			if !g.Counted() {
				continue
			}
			res.Count += g.Size()
			for _, idx := range g.Members {
				member[idx] = true
			}
		}
		res.Blobs = make([]Blob, 0, res.Count)
		for i, b := range filtered {
			if member[i] {
				res.Blobs = append(res.Blobs, b)
			}
		}
	} else {
		res.Count = len(filtered)
		res.Blobs = filtered
	}

	if len(res.Blobs) > MaxResultBlobs {
		res.Blobs = res.Blobs[:MaxResultBlobs]
		res.Truncated = true
	}
	return res, nil
}
