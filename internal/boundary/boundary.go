// Package boundary computes how far the transformed page stack may be
// dragged relative to its viewport.
package boundary

import (
	"errors"
	"math"

	"mobile-pdf/pkg/geometry"
)

// Config holds the overscroll margins allowed while zoomed in, and the
// zoom limits.
type Config struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`

	MinScale float64 `json:"min_scale"`
	MaxScale float64 `json:"max_scale"`
}

// DefaultConfig returns 50px margins on every side and a zoom range of 0.5 to 4.
func DefaultConfig() Config {
	return Config{
		Left:     50,
		Right:    50,
		Top:      50,
		Bottom:   50,
		MinScale: 0.5,
		MaxScale: 4,
	}
}

var (
	errMinScale   = errors.New("boundary: min scale must be positive")
	errScaleRange = errors.New("boundary: min scale exceeds max scale")
)

// Validate checks the zoom limits.
func (c Config) Validate() error {
	if c.MinScale <= 0 {
		return errMinScale
	}
	if c.MinScale > c.MaxScale {
		return errScaleRange
	}
	return nil
}

// ClampScale limits s to [MinScale, MaxScale].
func (c Config) ClampScale(s float64) float64 {
	return math.Max(c.MinScale, math.Min(c.MaxScale, s))
}

// Constrain returns the translation closest to (x, y) that keeps the
// content rectangle within the limits allowed at the given scale.
// Only the sizes of content and viewport are used, so the result does not
// depend on where the content currently is and Constrain is idempotent.
func Constrain(x, y, scale float64, content, viewport geometry.Rect, cfg Config) (float64, float64) {
	tx, ty := x, y

	if scale == 1 {
		tx = 0
		if content.Height > viewport.Height {
			ty = math.Min(ty, 0)
		}
	}

	if scale > 1 {
		tx = math.Max(viewport.Width-content.Width-cfg.Right, math.Min(tx, cfg.Left))
	}

	if scale < 1 {
		tx = math.Min(viewport.Width-content.Width, math.Max(tx, 0))
	}

	if content.Height < viewport.Height {
		ty = math.Min(viewport.Height-content.Height, math.Max(ty, 0))
	} else {
		ty = math.Max(viewport.Height-content.Height-cfg.Bottom, math.Min(ty, cfg.Top))
	}

	return tx, ty
}
