// Package transform owns the pan/zoom state of the page column and writes
// it to the host compositor once per frame.
package transform

import (
	"fmt"
	"math"

	"mobile-pdf/internal/boundary"
	"mobile-pdf/internal/host"
	"mobile-pdf/pkg/geometry"

	"seehuhn.de/go/geom/matrix"
)

// Mode is the current interaction mode.
type Mode int

const (
	Idle Mode = iota
	Dragging
	Pinching
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Pinching:
		return "pinching"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// State is a translate followed by a uniform scale about the content's
// top-left corner.
type State struct {
	TranslateX float64
	TranslateY float64
	Scale      float64
}

// Identity is the untransformed state.
func Identity() State {
	return State{Scale: 1}
}

// Matrix returns the affine form of s.
func (s State) Matrix() matrix.Matrix {
	return matrix.Matrix{s.Scale, 0, 0, s.Scale, s.TranslateX, s.TranslateY}
}

// Field selects the members of an Update that are applied.
type Field uint8

const (
	FieldTranslateX Field = 1 << iota
	FieldTranslateY
	FieldScale

	FieldTranslate = FieldTranslateX | FieldTranslateY
	FieldAll       = FieldTranslate | FieldScale
)

// Update is a partial state change.  Only the fields named in Set are
// written.
type Update struct {
	TranslateX float64
	TranslateY float64
	Scale      float64
	Set        Field
}

// Translate returns an update that moves the content to (x, y).
func Translate(x, y float64) Update {
	return Update{TranslateX: x, TranslateY: y, Set: FieldTranslate}
}

// Zoom returns an update that sets translation and scale together.
func Zoom(x, y, scale float64) Update {
	return Update{TranslateX: x, TranslateY: y, Scale: scale, Set: FieldAll}
}

// Controller holds the transform state.  All methods must be called from
// the loop goroutine that runs the frame scheduler.
type Controller struct {
	surf     host.Surface
	frames   host.FrameScheduler
	content  host.Element
	viewport host.Element
	cfg      boundary.Config

	state State
	mode  Mode

	frame     host.FrameID
	scheduled bool
	listeners []func(State)
}

// New creates a controller for the content element inside viewport and
// schedules the identity transform.
func New(surf host.Surface, frames host.FrameScheduler, content, viewport host.Element, cfg boundary.Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	c := &Controller{
		surf:     surf,
		frames:   frames,
		content:  content,
		viewport: viewport,
		cfg:      cfg,
		state:    Identity(),
	}
	c.schedule()
	return c, nil
}

// Apply overwrites the selected fields and schedules a compositor write on
// the next frame.  Several calls within one frame produce a single write
// of the latest state.  Non-finite values are ignored.
func (c *Controller) Apply(u Update) {
	if u.Set&FieldTranslateX != 0 && finite(u.TranslateX) {
		c.state.TranslateX = u.TranslateX
	}
	if u.Set&FieldTranslateY != 0 && finite(u.TranslateY) {
		c.state.TranslateY = u.TranslateY
	}
	if u.Set&FieldScale != 0 && finite(u.Scale) {
		c.state.Scale = c.cfg.ClampScale(u.Scale)
	}
	c.schedule()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Reset returns to the identity transform.
func (c *Controller) Reset() {
	c.state = Identity()
	c.schedule()
}

func (c *Controller) schedule() {
	if c.scheduled {
		return
	}
	c.scheduled = true
	c.frame = c.frames.ScheduleFrame(c.flush)
}

func (c *Controller) flush() {
	c.scheduled = false
	st := c.state
	c.surf.SetTransform(c.content, st.Matrix())
	for _, fn := range c.listeners {
		fn(st)
	}
}

// OnChange registers fn to be called after each compositor write.
func (c *Controller) OnChange(fn func(State)) {
	c.listeners = append(c.listeners, fn)
}

// ConstrainBoundary clamps a proposed translation using the current scale
// and the measured content and viewport boxes.
func (c *Controller) ConstrainBoundary(x, y float64) (float64, float64) {
	content := c.surf.MeasureRect(c.content)
	viewport := c.surf.MeasureRect(c.viewport)
	return boundary.Constrain(x, y, c.state.Scale, content, viewport, c.cfg)
}

// State returns the current (possibly not yet written) state.
func (c *Controller) State() State { return c.state }

// Translate returns the current translation.
func (c *Controller) Translate() (float64, float64) {
	return c.state.TranslateX, c.state.TranslateY
}

// Scale returns the current scale.
func (c *Controller) Scale() float64 { return c.state.Scale }

func (c *Controller) Mode() Mode { return c.mode }

// SetMode is reserved for the gesture recognizer.
func (c *Controller) SetMode(m Mode) { c.mode = m }

// Viewport returns the clipping element.
func (c *Controller) Viewport() host.Element { return c.viewport }

// ViewportRect measures the viewport element.
func (c *Controller) ViewportRect() geometry.Rect {
	return c.surf.MeasureRect(c.viewport)
}

// Boundary returns the boundary configuration.
func (c *Controller) Boundary() boundary.Config { return c.cfg }

// Close cancels a pending compositor write.
func (c *Controller) Close() {
	if c.scheduled {
		c.frames.CancelFrame(c.frame)
		c.scheduled = false
	}
	c.listeners = nil
}
