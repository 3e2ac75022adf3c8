package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Box is an inclusive pixel bounding box.
type Box struct {
	MinX int `json:"min_x"`
	MinY int `json:"min_y"`
	MaxX int `json:"max_x"`
	MaxY int `json:"max_y"`
}

// AnnotateResult contains the image with blob boxes drawn over it.
type AnnotateResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Boxes       int    `json:"boxes"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// AnnotateBoxes draws each box outline over a copy of img, one colour per
// box index, optionally labelling each box with its index.
//
// Box coordinates are relative to img.Bounds().Min. Boxes partially outside
// the image are clipped.
func AnnotateBoxes(img image.Image, boxes []Box, showLabels bool) (*AnnotateResult, error) {
	bounds := img.Bounds()
	result := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(result, result.Bounds(), img, bounds.Min, draw.Src)

	for i, b := range boxes {
		c := PaletteColor(i)

		for x := b.MinX; x <= b.MaxX; x++ {
			setClipped(result, x, b.MinY, c)
			setClipped(result, x, b.MaxY, c)
		}
		for y := b.MinY; y <= b.MaxY; y++ {
			setClipped(result, b.MinX, y, c)
			setClipped(result, b.MaxX, y, c)
		}

		if showLabels {
			drawLabel(result, b.MinX+1, b.MinY+1, strconv.Itoa(i), color.RGBA{255, 255, 255, 255}, c)
		}
	}

	encoded, err := encodePNGBase64(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &AnnotateResult{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Boxes:       len(boxes),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

// PaletteColor returns a deterministic, well separated colour for index i.
// Hues advance by the golden angle in HCL space so neighbouring indexes
// never share a hue.
func PaletteColor(i int) color.RGBA {
	hue := math.Mod(float64(i)*137.508, 360)
	if hue < 0 {
		hue += 360
	}
	r, g, b := colorful.Hcl(hue, 0.7, 0.6).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func setClipped(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

// drawLabel draws a label using a 3x5 pixel font for digits.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
	}

	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			setClipped(img, x+dx, y+dy, bg)
		}
	}

	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel == '1' {
					setClipped(img, cx+col, y+row, fg)
				}
			}
		}
		cx += charWidth
	}
}
