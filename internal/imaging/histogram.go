package imaging

import (
	"fmt"
)

// HistogramResult contains the luminance distribution of a frame.
type HistogramResult struct {
	// Bins holds the pixel count for each luma value 0-255.
	Bins [256]int `json:"bins"`

	// Total is the number of pixels counted (Width*Height).
	Total int `json:"total"`

	// Mean is the average luma, rounded to two decimals.
	Mean float64 `json:"mean"`

	// OtsuThreshold is the threshold that maximises between-class variance.
	// It is a suggestion only; counting always uses the caller's threshold.
	OtsuThreshold int `json:"otsu_threshold"`
}

// LumaHistogram computes the 256-bin luma histogram of a frame.
//
// RGB565 frames are converted with RGB565Luma, exactly as Threshold does,
// so the suggested threshold applies to the same values the thresholder
// compares.
func LumaHistogram(f Frame) (*HistogramResult, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	res := &HistogramResult{Total: f.Width * f.Height}
	var sum int64
	for i := 0; i < res.Total; i++ {
		l := f.LumaAt(i)
		res.Bins[l]++
		sum += int64(l)
	}

	res.Mean = float64(int64(float64(sum)/float64(res.Total)*100+0.5)) / 100
	res.OtsuThreshold = OtsuThreshold(res.Bins, res.Total)
	return res, nil
}

// OtsuThreshold returns the threshold t that maximises the between-class
// variance of the classes [0, t) and [t, 255].
//
// The returned value is the first bin of the upper class, so with
// PolarityDark every pixel strictly darker than t is foreground. A
// histogram with a single populated bin returns that bin's value.
func OtsuThreshold(bins [256]int, total int) int {
	if total <= 0 {
		return 0
	}

	var sumAll float64
	for i, c := range bins {
		sumAll += float64(i * c)
	}

	var (
		sumB    float64
		weightB int
		best    float64
		bestT   = -1
	)
	for t := 1; t < 256; t++ {
		weightB += bins[t-1]
		sumB += float64((t - 1) * bins[t-1])
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}

		meanB := sumB / float64(weightB)
		meanF := (sumAll - sumB) / float64(weightF)
		between := float64(weightB) * float64(weightF) * (meanB - meanF) * (meanB - meanF)
		if between > best {
			best = between
			bestT = t
		}
	}

	if bestT < 0 {
		for i, c := range bins {
			if c > 0 {
				return i
			}
		}
		return 0
	}
	return bestT
}

// LumaSample is the luminance of one pixel.
type LumaSample struct {
	X    int   `json:"x"`
	Y    int   `json:"y"`
	Luma uint8 `json:"luma"`
}

// SampleLuma returns the luma at (x, y). It is the manual way to pick a
// threshold: sample an object and its background and choose a value between.
func SampleLuma(f Frame, x, y int) (*LumaSample, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if x < 0 || x >= f.Width || y < 0 || y >= f.Height {
		return nil, fmt.Errorf("coordinates (%d,%d) outside frame bounds %dx%d", x, y, f.Width, f.Height)
	}
	return &LumaSample{X: x, Y: y, Luma: f.LumaAt(y*f.Width + x)}, nil
}
