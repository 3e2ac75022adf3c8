package imaging

import (
	"fmt"
	"strings"
)

// PixelFormat identifies the layout of a Frame's pixel buffer.
type PixelFormat int

const (
	// FormatGray8 stores one 8-bit luminance byte per pixel.
	FormatGray8 PixelFormat = iota
	// FormatRGB565 stores two bytes per pixel, high byte first, with 5 bits
	// red, 6 bits green and 5 bits blue. This is the byte order OV-series
	// sensors emit in RGB565 mode.
	FormatRGB565
)

// String returns the short name used in JSON and query parameters.
func (f PixelFormat) String() string {
	switch f {
	case FormatGray8:
		return "gray8"
	case FormatRGB565:
		return "rgb565"
	default:
		return "unknown"
	}
}

// BytesPerPixel returns the buffer stride of one pixel.
func (f PixelFormat) BytesPerPixel() int {
	if f == FormatRGB565 {
		return 2
	}
	return 1
}

// ParsePixelFormat parses "gray8" (also "gray", "grayscale") or "rgb565".
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gray8", "gray", "grayscale", "":
		return FormatGray8, nil
	case "rgb565":
		return FormatRGB565, nil
	default:
		return 0, fmt.Errorf("unknown pixel format: %s", s)
	}
}

// Frame is a decoded camera frame.
//
// The caller owns Pix for the duration of one counting call. Nothing in this
// module retains or writes to it.
type Frame struct {
	Width  int
	Height int
	Format PixelFormat
	Pix    []byte
}

// NewRawFrame wraps a raw sensor buffer and validates its shape.
func NewRawFrame(width, height int, format PixelFormat, pix []byte) (Frame, error) {
	f := Frame{Width: width, Height: height, Format: format, Pix: pix}
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Validate checks that the buffer length matches the dimensions and format.
func (f Frame) Validate() error {
	if f.Format != FormatGray8 && f.Format != FormatRGB565 {
		return fmt.Errorf("%w: unsupported pixel format %d", ErrInvalidFrameShape, int(f.Format))
	}
	n, err := ScratchSize(f.Width, f.Height)
	if err != nil {
		return err
	}
	want := n * f.Format.BytesPerPixel()
	if len(f.Pix) != want {
		return fmt.Errorf("%w: %s buffer of %d bytes, want %d for %dx%d",
			ErrInvalidFrameShape, f.Format, len(f.Pix), want, f.Width, f.Height)
	}
	return nil
}

// LumaAt returns the 8-bit luminance of pixel index i (row-major).
// No bounds checking is performed; callers validate the frame first.
func (f Frame) LumaAt(i int) uint8 {
	if f.Format == FormatRGB565 {
		return RGB565Luma(f.Pix[2*i], f.Pix[2*i+1])
	}
	return f.Pix[i]
}

// RGB565Luma converts one big-endian RGB565 pixel to 8-bit luma.
//
// Each channel is first expanded to 8 bits by linear scaling (R*255/31,
// G*255/63, B*255/31), then weighted with the ITU-R BT.601 coefficients in
// integer arithmetic: (R*299 + G*587 + B*114) / 1000.
func RGB565Luma(hi, lo byte) uint8 {
	v := uint32(hi)<<8 | uint32(lo)
	r := (v >> 11) & 0x1F
	g := (v >> 5) & 0x3F
	b := v & 0x1F

	r8 := r * 255 / 31
	g8 := g * 255 / 63
	b8 := b * 255 / 31

	return uint8((r8*299 + g8*587 + b8*114) / 1000)
}

// grayFromRGB applies the same integer BT.601 weighting to 8-bit channels.
func grayFromRGB(r, g, b uint8) uint8 {
	return uint8((uint32(r)*299 + uint32(g)*587 + uint32(b)*114) / 1000)
}
