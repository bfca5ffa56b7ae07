// Package viewer assembles the transform controller, gesture recognizer
// and page render manager into a document viewer.
package viewer

import (
	"context"
	"fmt"
	"time"

	"mobile-pdf/internal/boundary"
	"mobile-pdf/internal/decoder"
	"mobile-pdf/internal/gesture"
	"mobile-pdf/internal/host"
	"mobile-pdf/internal/render"
	"mobile-pdf/internal/transform"
)

// Config holds the viewer settings.
type Config struct {
	Boundary boundary.Config
	Render   render.Config

	DoubleTapTimeout  time.Duration
	DoubleTapDistance float64

	// PinchClamp keeps the content inside the boundary while pinching
	// instead of settling it on release.
	PinchClamp bool
}

// DefaultConfig returns the default settings of every component.
func DefaultConfig() Config {
	return Config{
		Boundary:          boundary.DefaultConfig(),
		Render:            render.DefaultConfig(),
		DoubleTapTimeout:  gesture.DefaultDoubleTapTimeout,
		DoubleTapDistance: gesture.DefaultDoubleTapDistance,
	}
}

// Host is the display the viewer draws into.
type Host interface {
	host.Surface
	host.PageContainer

	// Content is the transformed page column.
	Content() host.Element

	// Viewport is the clipping element around it.
	Viewport() host.Element
}

// Loop is the event loop the viewer is confined to.
type Loop interface {
	host.Poster
	host.FrameScheduler
}

// Viewer is a touch-driven, virtualized document viewer.
//
// Load may be called from any goroutine.  All other methods must run on
// the loop goroutine; other goroutines go through the loop's Post.
type Viewer struct {
	loop Loop
	ctl  *transform.Controller
	rec  *gesture.Recognizer
	mgr  *render.Manager

	// settle is the pending post-zoom boundary frame, or 0.
	settle host.FrameID
}

// New creates a viewer on h.  Hooks in cfg.Render.Hooks are called after
// the viewer's own handling.
func New(h Host, loop Loop, dec decoder.Decoder, cfg Config) (*Viewer, error) {
	ctl, err := transform.New(h, loop, h.Content(), h.Viewport(), cfg.Boundary)
	if err != nil {
		return nil, fmt.Errorf("viewer: %w", err)
	}
	v := &Viewer{loop: loop, ctl: ctl}

	opts := []gesture.Option{gesture.WithPinchClamp(cfg.PinchClamp)}
	if cfg.DoubleTapTimeout > 0 && cfg.DoubleTapDistance > 0 {
		opts = append(opts, gesture.WithDoubleTap(cfg.DoubleTapTimeout, cfg.DoubleTapDistance))
	}
	v.rec = gesture.New(ctl, loop, opts...)

	rc := cfg.Render
	before := rc.Hooks.BeforeRender
	rc.Hooks.BeforeRender = func() {
		v.stop()
		v.ctl.Reset()
		if before != nil {
			before()
		}
	}
	v.mgr = render.New(dec, h, h, h.Viewport(), loop, rc)
	return v, nil
}

// Load replaces the current document.  The returned channel receives the
// outcome once: nil, a *decoder.DecodeError, or render.ErrSuperseded.
func (v *Viewer) Load(ctx context.Context, src decoder.Source) <-chan error {
	ch := make(chan error, 1)
	v.loop.Post(func() {
		v.mgr.Load(ctx, src, func(err error) { ch <- err })
	})
	return ch
}

// Unload closes the current document.
func (v *Viewer) Unload() {
	v.stop()
	v.mgr.Unload()
}

// ResetView returns to the identity transform.
func (v *Viewer) ResetView() {
	v.stop()
	v.ctl.Reset()
}

// stop ends gesture animations and drops a pending zoom settle.
func (v *Viewer) stop() {
	v.rec.Stop()
	if v.settle != 0 {
		v.loop.CancelFrame(v.settle)
		v.settle = 0
	}
}

// ZoomAt multiplies the scale by factor around the viewport point (x, y)
// and settles inside the boundary on the following frame.
func (v *Viewer) ZoomAt(x, y, factor float64) {
	v.stop()
	st := v.ctl.State()
	s := v.ctl.Boundary().ClampScale(st.Scale * factor)
	r := s / st.Scale
	v.ctl.Apply(transform.Zoom(x-(x-st.TranslateX)*r, y-(y-st.TranslateY)*r, s))
	v.settle = v.loop.ScheduleFrame(func() {
		v.settle = 0
		cur := v.ctl.State()
		tx, ty := v.ctl.ConstrainBoundary(cur.TranslateX, cur.TranslateY)
		v.ctl.Apply(transform.Translate(tx, ty))
	})
}

// Scale returns the current zoom factor.
func (v *Viewer) Scale() float64 { return v.ctl.Scale() }

// Translate returns the current pan offset.
func (v *Viewer) Translate() (float64, float64) { return v.ctl.Translate() }

// State returns the full transform state.
func (v *Viewer) State() transform.State { return v.ctl.State() }

// OnTransform registers fn to be called after each transform write.
func (v *Viewer) OnTransform(fn func(transform.State)) { v.ctl.OnChange(fn) }

// Pages returns the page entries of the loaded document.
func (v *Viewer) Pages() []*render.PageEntry { return v.mgr.Pages() }

// Document returns the loaded document, or nil.
func (v *Viewer) Document() decoder.Document { return v.mgr.Document() }

// Attach starts reading touch input from src.
func (v *Viewer) Attach(src gesture.InputSource) { v.rec.Attach(src) }

// Detach stops reading touch input.
func (v *Viewer) Detach() { v.rec.Detach() }

// Close detaches input, unloads the document and cancels pending frames.
func (v *Viewer) Close() {
	v.rec.Detach()
	v.stop()
	v.mgr.Unload()
	v.ctl.Close()
}
