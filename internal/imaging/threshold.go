package imaging

import (
	"fmt"
	"strings"
)

// Polarity selects which side of the threshold counts as foreground.
type Polarity int

const (
	// PolarityDark marks pixels with luma < threshold as foreground
	// (dark objects on a light background). It is the zero value.
	PolarityDark Polarity = iota
	// PolarityBright marks pixels with luma > threshold as foreground
	// (light objects on a dark background).
	PolarityBright
)

// String returns "dark" or "bright".
func (p Polarity) String() string {
	switch p {
	case PolarityDark:
		return "dark"
	case PolarityBright:
		return "bright"
	default:
		return "unknown"
	}
}

// ParsePolarity parses "dark" or "bright" (case-insensitive).
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dark":
		return PolarityDark, nil
	case "bright":
		return PolarityBright, nil
	default:
		return 0, fmt.Errorf("%w: unknown polarity %q (want dark or bright)", ErrInvalidConfig, s)
	}
}

// MarshalText encodes the polarity as "dark" or "bright".
func (p Polarity) MarshalText() ([]byte, error) {
	if p != PolarityDark && p != PolarityBright {
		return nil, fmt.Errorf("%w: unknown polarity %d", ErrInvalidConfig, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes "dark" or "bright".
func (p *Polarity) UnmarshalText(text []byte) error {
	v, err := ParsePolarity(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Mask is a binary foreground mask with the dimensions of its source frame.
//
// Bits is row-major: the pixel at (x, y) is Bits[y*Width+x].
type Mask struct {
	Width  int
	Height int
	Bits   []bool
}

// NewMask allocates an all-background mask.
//
// Returns ErrAllocationFailure if width*height exceeds the scratch budget.
func NewMask(width, height int) (*Mask, error) {
	n, err := ScratchSize(width, height)
	if err != nil {
		return nil, err
	}
	return &Mask{Width: width, Height: height, Bits: make([]bool, n)}, nil
}

// At reports whether (x, y) is foreground. Out-of-range coordinates are
// background.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Bits[y*m.Width+x]
}

// Set marks (x, y) as foreground or background.
func (m *Mask) Set(x, y int, fg bool) {
	m.Bits[y*m.Width+x] = fg
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// Validate checks that Bits matches the mask dimensions.
func (m *Mask) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil mask", ErrInvalidFrameShape)
	}
	n, err := ScratchSize(m.Width, m.Height)
	if err != nil {
		return err
	}
	if len(m.Bits) != n {
		return fmt.Errorf("%w: mask has %d entries, want %d for %dx%d",
			ErrInvalidFrameShape, len(m.Bits), n, m.Width, m.Height)
	}
	return nil
}

// Threshold converts a frame to a binary mask.
//
// Parameters:
//   - frame: Gray8 or RGB565 frame. RGB565 pixels are converted with
//     RGB565Luma before comparison.
//   - value: threshold in [0, 255].
//   - polarity: PolarityDark (luma < value is foreground) or
//     PolarityBright (luma > value is foreground).
//
// Returns:
//   - *Mask: a new mask the size of the frame. The frame is not modified.
//   - error: ErrInvalidConfig for an out-of-range value or unknown polarity,
//     ErrInvalidFrameShape for a malformed frame, ErrAllocationFailure when
//     the mask cannot be allocated. No mask is returned with an error.
func Threshold(frame Frame, value int, polarity Polarity) (*Mask, error) {
	if value < 0 || value > 255 {
		return nil, fmt.Errorf("%w: threshold %d outside [0,255]", ErrInvalidConfig, value)
	}
	if polarity != PolarityDark && polarity != PolarityBright {
		return nil, fmt.Errorf("%w: unknown polarity %d", ErrInvalidConfig, int(polarity))
	}
	if err := frame.Validate(); err != nil {
		return nil, err
	}

	mask, err := NewMask(frame.Width, frame.Height)
	if err != nil {
		return nil, err
	}

	t := uint8(value)
	for i := range mask.Bits {
		luma := frame.LumaAt(i)
		if polarity == PolarityDark {
			mask.Bits[i] = luma < t
		} else {
			mask.Bits[i] = luma > t
		}
	}

	return mask, nil
}
