// Package prefs provides JSON-based application preferences.
package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mobile-pdf/internal/viewer"
)

const prefsFile = "preferences.json"

// Preference keys.
const (
	KeyLastDocument  = "last_document"
	KeyLastDirectory = "last_directory"
	KeyWatchDocument = "watch_document"

	KeyOversampling      = "render.oversampling"
	KeyVisibilityMargin  = "render.visibility_margin"
	KeyVisibilityRatio   = "render.visibility_threshold"
	KeyBoundaryLeft      = "boundary.left"
	KeyBoundaryRight     = "boundary.right"
	KeyBoundaryTop       = "boundary.top"
	KeyBoundaryBottom    = "boundary.bottom"
	KeyMinScale          = "boundary.min_scale"
	KeyMaxScale          = "boundary.max_scale"
	KeyDoubleTapMillis   = "gesture.double_tap_ms"
	KeyDoubleTapDistance = "gesture.double_tap_distance"
	KeyPinchClamp        = "gesture.pinch_clamp"
)

// Prefs stores application preferences as a key-value map.
type Prefs struct {
	mu     sync.RWMutex
	values map[string]interface{}
	path   string
}

// Load reads preferences from ~/.config/mobile-pdf/preferences.json.
// Returns a Prefs with defaults if the file doesn't exist.
func Load() *Prefs {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return LoadFrom(filepath.Join(configDir, "mobile-pdf", prefsFile))
}

// LoadFrom reads preferences from path.  A missing or unreadable file
// yields empty preferences that will be saved to path.
func LoadFrom(path string) *Prefs {
	p := &Prefs{
		values: make(map[string]interface{}),
		path:   path,
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return p
	}
	_ = json.Unmarshal(data, &p.values)
	return p
}

// Path returns the preferences file.
func (p *Prefs) Path() string { return p.path }

// Save writes preferences to disk.
func (p *Prefs) Save() error {
	p.mu.RLock()
	data, err := json.MarshalIndent(p.values, "", "  ")
	p.mu.RUnlock()
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o644)
}

// Float returns a float64 preference, or 0 if not set.
func (p *Prefs) Float(key string) float64 {
	return p.FloatWithFallback(key, 0)
}

// FloatWithFallback returns a float64 preference, or fallback if not set.
func (p *Prefs) FloatWithFallback(key string, fallback float64) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.values[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return fallback
}

// SetFloat stores a float64 preference.
func (p *Prefs) SetFloat(key string, val float64) {
	p.mu.Lock()
	p.values[key] = val
	p.mu.Unlock()
}

// String returns a string preference, or "" if not set.
func (p *Prefs) String(key string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SetString stores a string preference.
func (p *Prefs) SetString(key string, val string) {
	p.mu.Lock()
	p.values[key] = val
	p.mu.Unlock()
}

// Bool returns a bool preference, or fallback if not set.
func (p *Prefs) Bool(key string, fallback bool) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.values[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return fallback
}

// SetBool stores a bool preference.
func (p *Prefs) SetBool(key string, val bool) {
	p.mu.Lock()
	p.values[key] = val
	p.mu.Unlock()
}

// ViewerConfig builds a viewer configuration from the stored values,
// using defaults for anything unset.  Boundary settings that do not
// validate are replaced by the defaults as a whole.
func (p *Prefs) ViewerConfig() viewer.Config {
	cfg := viewer.DefaultConfig()

	r := &cfg.Render
	r.Oversampling = p.FloatWithFallback(KeyOversampling, r.Oversampling)
	r.VisibilityMargin = p.FloatWithFallback(KeyVisibilityMargin, r.VisibilityMargin)
	r.Threshold = p.FloatWithFallback(KeyVisibilityRatio, r.Threshold)

	b := cfg.Boundary
	b.Left = p.FloatWithFallback(KeyBoundaryLeft, b.Left)
	b.Right = p.FloatWithFallback(KeyBoundaryRight, b.Right)
	b.Top = p.FloatWithFallback(KeyBoundaryTop, b.Top)
	b.Bottom = p.FloatWithFallback(KeyBoundaryBottom, b.Bottom)
	b.MinScale = p.FloatWithFallback(KeyMinScale, b.MinScale)
	b.MaxScale = p.FloatWithFallback(KeyMaxScale, b.MaxScale)
	if b.Validate() == nil {
		cfg.Boundary = b
	}

	ms := p.FloatWithFallback(KeyDoubleTapMillis, float64(cfg.DoubleTapTimeout/time.Millisecond))
	cfg.DoubleTapTimeout = time.Duration(ms * float64(time.Millisecond))
	cfg.DoubleTapDistance = p.FloatWithFallback(KeyDoubleTapDistance, cfg.DoubleTapDistance)
	cfg.PinchClamp = p.Bool(KeyPinchClamp, cfg.PinchClamp)
	return cfg
}
