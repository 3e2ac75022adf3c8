package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// PreviewResult contains a rendered binary mask encoded as base64 PNG.
//
// Foreground pixels are white (255) and background pixels black (0),
// regardless of the polarity that produced the mask.
type PreviewResult struct {
	// Width of the output image in pixels (same as the frame).
	Width int `json:"width"`

	// Height of the output image in pixels (same as the frame).
	Height int `json:"height"`

	// ForegroundPixels is the number of white pixels.
	ForegroundPixels int `json:"foreground_pixels"`

	// ImageBase64 is the mask encoded as base64 PNG.
	ImageBase64 string `json:"image_base64"`

	// MimeType is always "image/png".
	MimeType string `json:"mime_type"`
}

// MaskPreview renders a mask so a user can check threshold and polarity
// before trusting a count.
func MaskPreview(m *Mask) (*PreviewResult, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	fg := 0
	for i, b := range m.Bits {
		if b {
			img.Pix[i] = 255
			fg++
		}
	}

	encoded, err := encodePNGBase64(img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mask image: %w", err)
	}

	return &PreviewResult{
		Width:            m.Width,
		Height:           m.Height,
		ForegroundPixels: fg,
		ImageBase64:      encoded,
		MimeType:         "image/png",
	}, nil
}

// EncodePNG writes img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodePNGBase64(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
