package imaging

import (
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
)

// Region represents a rectangular region of interest within an image.
//
// (X1, Y1) is inclusive, (X2, Y2) is exclusive.
type Region struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Rect converts the region to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// FrameOptions controls how a decoded image becomes a counting Frame.
//
// All steps are optional and applied in order: crop, fit, blur, luma.
type FrameOptions struct {
	// Region crops the image to a tray or conveyor area before counting.
	Region *Region

	// MaxWidth and MaxHeight bound the frame resolution, which bounds the
	// engine's per-frame work. Zero leaves that axis unbounded.
	MaxWidth  int
	MaxHeight int

	// BlurRadius applies a Gaussian blur of this radius to suppress sensor
	// noise that would otherwise label as one-pixel blobs. Zero disables.
	BlurRadius float64
}

// FrameFromImage converts a decoded image into a Gray8 Frame.
//
// Parameters:
//   - img: any decoded image.
//   - opts: optional crop, resolution bound and denoise.
//
// Returns:
//   - Frame: a new Gray8 frame owned by the caller.
//   - error: non-nil if the region lies outside the image or the result
//     exceeds the scratch budget.
//
// Luma uses the same integer BT.601 weights as RGB565Luma so that an image
// and the raw sensor buffer it came from threshold identically.
func FrameFromImage(img image.Image, opts FrameOptions) (Frame, error) {
	src := img
	bounds := src.Bounds()

	if opts.Region != nil {
		if opts.Region.X1 >= opts.Region.X2 || opts.Region.Y1 >= opts.Region.Y2 {
			return Frame{}, fmt.Errorf("invalid region: x1 must be < x2, y1 must be < y2")
		}
		r := opts.Region.Rect()
		if !r.In(bounds) {
			return Frame{}, fmt.Errorf("region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
				r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
		}
		src = imaging.Crop(src, r)
	}

	if opts.MaxWidth > 0 || opts.MaxHeight > 0 {
		b := src.Bounds()
		maxW, maxH := opts.MaxWidth, opts.MaxHeight
		if maxW <= 0 {
			maxW = b.Dx()
		}
		if maxH <= 0 {
			maxH = b.Dy()
		}
		if b.Dx() > maxW || b.Dy() > maxH {
			src = imaging.Fit(src, maxW, maxH, imaging.Box)
		}
	}

	if opts.BlurRadius > 0 {
		src = blur.Gaussian(src, opts.BlurRadius)
	}

	return grayFrame(src)
}

// grayFrame extracts BT.601 luma from any image into a Gray8 frame.
func grayFrame(img image.Image) (Frame, error) {
	b := img.Bounds()
	n, err := ScratchSize(b.Dx(), b.Dy())
	if err != nil {
		return Frame{}, err
	}

	pix := make([]byte, n)
	w := b.Dx()

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			row := src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride+(b.Min.X-src.Rect.Min.X):]
			copy(pix[y*w:(y+1)*w], row[:w])
		}
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			off := (y+b.Min.Y-src.Rect.Min.Y)*src.Stride + (b.Min.X-src.Rect.Min.X)*4
			for x := 0; x < w; x++ {
				p := src.Pix[off+x*4 : off+x*4+3]
				pix[y*w+x] = grayFromRGB(p[0], p[1], p[2])
			}
		}
	default:
		// Un-premultiplied, matching the NRGBA fast path for translucent
		// pixels.
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < w; x++ {
				c := color.NRGBAModel.Convert(img.At(x+b.Min.X, y+b.Min.Y)).(color.NRGBA)
				pix[y*w+x] = grayFromRGB(c.R, c.G, c.B)
			}
		}
	}

	return Frame{Width: w, Height: b.Dy(), Format: FormatGray8, Pix: pix}, nil
}

// FrameImage renders a frame as an *image.Gray for encoding and overlays.
func FrameImage(f Frame) (*image.Gray, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	if f.Format == FormatGray8 {
		copy(img.Pix, f.Pix)
		return img, nil
	}
	for i := range img.Pix {
		img.Pix[i] = f.LumaAt(i)
	}
	return img, nil
}
