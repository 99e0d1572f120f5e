package model

import (
	"fmt"
	"math"
)

// DefaultQuality is used when no quality is supplied.
const DefaultQuality = 0.9

// Settings configures a single conversion call.
type Settings struct {
	Quality             float64 `json:"quality"` // 0..1
	Format              Format  `json:"format"`
	MaintainAspectRatio bool    `json:"maintain_aspect_ratio"`

	// MaxWidth and MaxHeight bound the output size; zero means unlimited.
	MaxWidth  int `json:"max_width,omitempty"`
	MaxHeight int `json:"max_height,omitempty"`
}

// DefaultSettings returns settings for format with the default quality.
func DefaultSettings(format Format) Settings {
	return Settings{Quality: DefaultQuality, Format: format, MaintainAspectRatio: true}
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	if math.IsNaN(s.Quality) || s.Quality < 0 || s.Quality > 1 {
		return fmt.Errorf("quality %.2f out of range [0,1]", s.Quality)
	}
	if s.MaxWidth < 0 || s.MaxHeight < 0 {
		return fmt.Errorf("max dimensions must not be negative")
	}
	if s.Format != "" && !s.Format.IsTarget() {
		return fmt.Errorf("unsupported target format: %s", s.Format)
	}
	return nil
}

// Resizes reports whether a max dimension is set.
func (s Settings) Resizes() bool {
	return s.MaxWidth > 0 || s.MaxHeight > 0
}
