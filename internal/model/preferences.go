package model

import (
	"fmt"
	"math"
	"time"
)

// Theme is a UI color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeCyber Theme = "cyber"
)

// ClockFormat selects 12 or 24 hour time display.
type ClockFormat string

const (
	Clock12h ClockFormat = "12h"
	Clock24h ClockFormat = "24h"
)

// Preferences is the per-client key/value configuration surface.
type Preferences struct {
	ClientID     string      `json:"client_id"`
	Theme        Theme       `json:"theme"`
	ClockFormat  ClockFormat `json:"clock_format"`
	AutoDownload bool        `json:"auto_download"`
	Quality      float64     `json:"quality"`
	Format       Format      `json:"format"`
	Language     string      `json:"language"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// DefaultPreferences returns the preferences of a client that never saved any.
func DefaultPreferences(clientID string) Preferences {
	return Preferences{
		ClientID:    clientID,
		Theme:       ThemeDark,
		ClockFormat: Clock24h,
		Quality:     DefaultQuality,
		Format:      FormatPNG,
		Language:    "en",
	}
}

// Validate rejects values outside the enumerated sets.
func (p Preferences) Validate() error {
	switch p.Theme {
	case ThemeLight, ThemeDark, ThemeCyber:
	default:
		return fmt.Errorf("unknown theme: %q", p.Theme)
	}

	switch p.ClockFormat {
	case Clock12h, Clock24h:
	default:
		return fmt.Errorf("unknown clock format: %q", p.ClockFormat)
	}

	if math.IsNaN(p.Quality) || p.Quality < 0 || p.Quality > 1 {
		return fmt.Errorf("quality %.2f out of range [0,1]", p.Quality)
	}

	if !p.Format.IsTarget() {
		return fmt.Errorf("unsupported format: %q", p.Format)
	}

	if p.Language == "" {
		return fmt.Errorf("language is required")
	}

	return nil
}
