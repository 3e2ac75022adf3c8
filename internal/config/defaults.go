package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/ironsheep/object-counter/internal/detection"
	"github.com/ironsheep/object-counter/internal/imaging"
)

// Built-in counting defaults, used for any field a defaults file omits.
const (
	DefaultThreshold       = 100
	DefaultMinArea         = 20
	DefaultMaxArea         = 5000
	DefaultAreaTolerance   = 0.3
	DefaultAspectTolerance = 0.5
	DefaultMaxWidth        = 1280
	DefaultMaxHeight       = 1280
)

const maxDefaultsFileSize = 1 * 1024 * 1024 // 1MB

// CountingDefaults is the JSON file of counting parameters applied when a
// request leaves a field unset. Nil fields fall back to the built-in
// defaults, so partial files are safe.
type CountingDefaults struct {
	Threshold       *int     `json:"threshold,omitempty"`
	Polarity        *string  `json:"polarity,omitempty"`
	MinArea         *int     `json:"min_area,omitempty"`
	MaxArea         *int     `json:"max_area,omitempty"`
	SmartMode       *bool    `json:"smart_mode,omitempty"`
	AreaTolerance   *float64 `json:"area_tolerance,omitempty"`
	AspectTolerance *float64 `json:"aspect_tolerance,omitempty"`

	// Frame preparation for decoded images.
	MaxWidth   *int     `json:"max_width,omitempty"`
	MaxHeight  *int     `json:"max_height,omitempty"`
	BlurRadius *float64 `json:"blur_radius,omitempty"`
}

// EmptyCountingDefaults returns defaults with every field unset.
func EmptyCountingDefaults() *CountingDefaults {
	return &CountingDefaults{}
}

// LoadCountingDefaults loads CountingDefaults from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadCountingDefaults(path string) (*CountingDefaults, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("defaults file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat defaults file: %w", err)
	}
	if fileInfo.Size() > maxDefaultsFileSize {
		return nil, fmt.Errorf("defaults file too large: %d bytes (max %d)", fileInfo.Size(), maxDefaultsFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read defaults file: %w", err)
	}

	d := EmptyCountingDefaults()
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("failed to parse defaults JSON: %w", err)
	}

	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid defaults: %w", err)
	}
	return d, nil
}

// Validate checks the fields that are set, and that the resolved counting
// config is valid.
func (d *CountingDefaults) Validate() error {
	if d.Polarity != nil {
		if _, err := imaging.ParsePolarity(*d.Polarity); err != nil {
			return err
		}
	}
	if d.MaxWidth != nil && *d.MaxWidth < 0 {
		return fmt.Errorf("max_width must be non-negative, got %d", *d.MaxWidth)
	}
	if d.MaxHeight != nil && *d.MaxHeight < 0 {
		return fmt.Errorf("max_height must be non-negative, got %d", *d.MaxHeight)
	}
	if d.BlurRadius != nil && (*d.BlurRadius < 0 || math.IsNaN(*d.BlurRadius) || math.IsInf(*d.BlurRadius, 0)) {
		return fmt.Errorf("blur_radius must be finite and non-negative, got %v", *d.BlurRadius)
	}
	return d.CountConfig().Validate()
}

// GetThreshold returns the threshold value or the default.
func (d *CountingDefaults) GetThreshold() int {
	if d.Threshold == nil {
		return DefaultThreshold
	}
	return *d.Threshold
}

// GetPolarity returns the polarity or PolarityDark. An unparsable value,
// which Validate rejects, also yields PolarityDark.
func (d *CountingDefaults) GetPolarity() imaging.Polarity {
	if d.Polarity == nil {
		return imaging.PolarityDark
	}
	p, err := imaging.ParsePolarity(*d.Polarity)
	if err != nil {
		return imaging.PolarityDark
	}
	return p
}

// GetMinArea returns the min_area value or the default.
func (d *CountingDefaults) GetMinArea() int {
	if d.MinArea == nil {
		return DefaultMinArea
	}
	return *d.MinArea
}

// GetMaxArea returns the max_area value or the default.
func (d *CountingDefaults) GetMaxArea() int {
	if d.MaxArea == nil {
		return DefaultMaxArea
	}
	return *d.MaxArea
}

// GetSmartMode returns the smart_mode value or false.
func (d *CountingDefaults) GetSmartMode() bool {
	if d.SmartMode == nil {
		return false
	}
	return *d.SmartMode
}

// GetAreaTolerance returns the area_tolerance value or the default.
func (d *CountingDefaults) GetAreaTolerance() float64 {
	if d.AreaTolerance == nil {
		return DefaultAreaTolerance
	}
	return *d.AreaTolerance
}

// GetAspectTolerance returns the aspect_tolerance value or the default.
func (d *CountingDefaults) GetAspectTolerance() float64 {
	if d.AspectTolerance == nil {
		return DefaultAspectTolerance
	}
	return *d.AspectTolerance
}

// CountConfig resolves every counting field.
func (d *CountingDefaults) CountConfig() detection.Config {
	return detection.Config{
		Threshold:       d.GetThreshold(),
		Polarity:        d.GetPolarity(),
		MinArea:         d.GetMinArea(),
		MaxArea:         d.GetMaxArea(),
		SmartMode:       d.GetSmartMode(),
		AreaTolerance:   d.GetAreaTolerance(),
		AspectTolerance: d.GetAspectTolerance(),
	}
}

// FrameOptions resolves the frame preparation fields.
func (d *CountingDefaults) FrameOptions() imaging.FrameOptions {
	opts := imaging.FrameOptions{MaxWidth: DefaultMaxWidth, MaxHeight: DefaultMaxHeight}
	if d.MaxWidth != nil {
		opts.MaxWidth = *d.MaxWidth
	}
	if d.MaxHeight != nil {
		opts.MaxHeight = *d.MaxHeight
	}
	if d.BlurRadius != nil {
		opts.BlurRadius = *d.BlurRadius
	}
	return opts
}
