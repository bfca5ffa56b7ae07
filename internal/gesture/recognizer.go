// Package gesture turns raw multi-touch input into pan, pinch-zoom,
// double-tap zoom and inertial scrolling of a transform.
//
// A Recognizer is confined to the loop goroutine: touch handlers must be
// called from it, and animation steps run on its frame scheduler.
package gesture

import (
	"log/slog"
	"math"
	"time"

	"mobile-pdf/internal/boundary"
	"mobile-pdf/internal/host"
	"mobile-pdf/internal/logging"
	"mobile-pdf/internal/transform"
	"mobile-pdf/pkg/geometry"
)

const (
	DefaultDoubleTapTimeout  = 300 * time.Millisecond
	DefaultDoubleTapDistance = 30.0

	// DefaultTapSlop is how far a finger may wander before a touch counts
	// as a drag rather than a tap.
	DefaultTapSlop = 10.0

	DefaultInertiaGain = 25.0
	DefaultDamping     = 0.95

	minVelocity = 0.1
)

// Touch is one contact point in client coordinates.
type Touch struct {
	ID   int
	X, Y float64
}

// TouchEvent describes a change in the set of contacts.  Touches lists
// the contacts still down after the event; Changed lists the ones the
// event is about.
type TouchEvent struct {
	Touches []Touch
	Changed []Touch
	Time    time.Time
}

// TouchHandler receives touch input.
type TouchHandler interface {
	TouchStart(ev TouchEvent)
	TouchMove(ev TouchEvent)
	TouchEnd(ev TouchEvent)
	TouchCancel(ev TouchEvent)
}

// InputSource delivers touch input to handlers.
type InputSource interface {
	AddTouchHandler(h TouchHandler)
	RemoveTouchHandler(h TouchHandler)
}

// Transformer is the part of the transform controller the recognizer
// drives.
type Transformer interface {
	Apply(u transform.Update)
	State() transform.State
	ConstrainBoundary(x, y float64) (float64, float64)
	Boundary() boundary.Config
	Mode() transform.Mode
	SetMode(m transform.Mode)
	ViewportRect() geometry.Rect
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithClock sets the time source used for events without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(r *Recognizer) { r.now = now }
}

// WithPinchClamp enables boundary clamping during an active pinch.  By
// default clamping waits until the fingers are lifted.
func WithPinchClamp(on bool) Option {
	return func(r *Recognizer) { r.pinchClamp = on }
}

// WithDoubleTap sets the maximum delay and distance between the two taps
// of a double tap.
func WithDoubleTap(timeout time.Duration, distance float64) Option {
	return func(r *Recognizer) {
		r.tapTimeout = timeout
		r.tapDistance = distance
	}
}

// WithTapSlop sets the movement tolerance of a tap.
func WithTapSlop(d float64) Option {
	return func(r *Recognizer) { r.tapSlop = d }
}

// WithInertia sets the velocity gain and per-frame damping of the fling
// animation.
func WithInertia(gain, damping float64) Option {
	return func(r *Recognizer) {
		r.gain = gain
		r.damping = damping
	}
}

// WithLogger overrides the logger used for recovered handler failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recognizer) { r.log = l }
}

type pinchBaseline struct {
	distance  float64
	scale     float64
	translate geometry.Point2D
	center    geometry.Point2D
}

// Recognizer implements [TouchHandler].
type Recognizer struct {
	t      Transformer
	frames host.FrameScheduler
	src    InputSource
	log    *slog.Logger
	now    func() time.Time

	pinchClamp  bool
	tapTimeout  time.Duration
	tapDistance float64
	tapSlop     float64
	gain        float64
	damping     float64

	// current touch session
	anchor  geometry.Point2D
	origin  geometry.Point2D
	moved   bool
	pinched bool
	pinch   pinchBaseline
	history history

	// double-tap tracking, kept across sessions
	lastTapTime time.Time
	lastTap     geometry.Point2D
	tapCount    int

	velocity      geometry.Point2D
	inertiaFrame  host.FrameID
	inertiaActive bool
	settleFrame   host.FrameID
	settlePending bool
}

// New creates a recognizer driving t.
func New(t Transformer, frames host.FrameScheduler, opts ...Option) *Recognizer {
	r := &Recognizer{
		t:           t,
		frames:      frames,
		log:         logging.For("gesture"),
		now:         time.Now,
		tapTimeout:  DefaultDoubleTapTimeout,
		tapDistance: DefaultDoubleTapDistance,
		tapSlop:     DefaultTapSlop,
		gain:        DefaultInertiaGain,
		damping:     DefaultDamping,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach subscribes to src, replacing any previous source.
func (r *Recognizer) Attach(src InputSource) {
	if r.src != nil {
		r.Detach()
	}
	r.src = src
	src.AddTouchHandler(r)
}

// Detach unsubscribes from the current source and stops any animation.
func (r *Recognizer) Detach() {
	if r.src != nil {
		r.src.RemoveTouchHandler(r)
		r.src = nil
	}
	r.Stop()
}

// Stop cancels inertia and any pending settle step.
func (r *Recognizer) Stop() {
	r.stopInertia()
	if r.settlePending {
		r.frames.CancelFrame(r.settleFrame)
		r.settlePending = false
	}
}

// Inertia reports the current fling velocity in pixels per frame.
func (r *Recognizer) Inertia() (geometry.Point2D, bool) {
	return r.velocity, r.inertiaActive
}

func (r *Recognizer) local(t Touch) geometry.Point2D {
	vp := r.t.ViewportRect()
	return geometry.NewPoint2D(t.X-vp.X, t.Y-vp.Y)
}

func (r *Recognizer) eventTime(ev TouchEvent) time.Time {
	if ev.Time.IsZero() {
		return r.now()
	}
	return ev.Time
}

func (r *Recognizer) translate() geometry.Point2D {
	st := r.t.State()
	return geometry.NewPoint2D(st.TranslateX, st.TranslateY)
}

// recoverPanic turns a panic inside a handler into a logged GestureError
// and drops the session.
func (r *Recognizer) recoverPanic(phase string) {
	v := recover()
	if v == nil {
		return
	}
	err := newGestureError(phase, v)
	r.log.Warn("touch handler failed", "err", err)
	r.resetSession()
}

func (r *Recognizer) resetSession() {
	r.stopInertia()
	r.moved = false
	r.pinched = false
	r.pinch = pinchBaseline{}
	r.history.Reset()
	r.t.SetMode(transform.Idle)
}

// TouchStart implements [TouchHandler].
func (r *Recognizer) TouchStart(ev TouchEvent) {
	defer r.recoverPanic("start")

	r.Stop()
	switch {
	case len(ev.Touches) == 1:
		p := r.local(ev.Touches[0])
		r.moved = false
		r.pinched = false
		r.history.Reset()
		r.t.SetMode(transform.Dragging)
		r.anchor = p.Sub(r.translate())
		r.origin = p
	case len(ev.Touches) >= 2:
		a, b := r.local(ev.Touches[0]), r.local(ev.Touches[1])
		r.pinched = true
		r.t.SetMode(transform.Pinching)
		r.pinch = pinchBaseline{
			distance:  a.Distance(b),
			scale:     r.t.State().Scale,
			translate: r.translate(),
			center:    a.Midpoint(b),
		}
	}
}

// TouchMove implements [TouchHandler].
func (r *Recognizer) TouchMove(ev TouchEvent) {
	defer r.recoverPanic("move")

	switch {
	case len(ev.Touches) == 1 && r.t.Mode() == transform.Dragging:
		p := r.local(ev.Touches[0])
		r.history.Push(sample{P: p, T: r.eventTime(ev)})
		if p.Distance(r.origin) > r.tapSlop {
			r.moved = true
		}
		next := p.Sub(r.anchor)
		x, y := r.t.ConstrainBoundary(next.X, next.Y)
		r.t.Apply(transform.Translate(x, y))

	case len(ev.Touches) == 2:
		if r.pinch.distance == 0 {
			return
		}
		a, b := r.local(ev.Touches[0]), r.local(ev.Touches[1])
		ratio := a.Distance(b) / r.pinch.distance
		scale := r.t.Boundary().ClampScale(r.pinch.scale * ratio)
		k := scale / r.pinch.scale
		c := r.pinch.center
		next := r.pinch.translate.Sub(c).Scale(k).Add(c)
		x, y := next.X, next.Y
		if r.pinchClamp {
			x, y = r.t.ConstrainBoundary(x, y)
		}
		r.t.Apply(transform.Zoom(x, y, scale))
	}
}

// TouchEnd implements [TouchHandler].
func (r *Recognizer) TouchEnd(ev TouchEvent) {
	defer r.recoverPanic("end")
	r.release()
	r.detectDoubleTap(ev)
	if len(ev.Touches) == 0 {
		r.moved = false
		r.pinched = false
	}
}

// TouchCancel implements [TouchHandler].  The touch is released like
// TouchEnd but never counts as a tap.
func (r *Recognizer) TouchCancel(ev TouchEvent) {
	defer r.recoverPanic("cancel")
	r.release()
	r.forgetTaps()
	if len(ev.Touches) == 0 {
		r.moved = false
		r.pinched = false
	}
}

func (r *Recognizer) release() {
	r.t.SetMode(transform.Idle)
	r.pinch = pinchBaseline{}
	if r.history.Len() >= 2 {
		r.startInertia()
	} else {
		r.settle()
	}
	r.history.Reset()
}

func (r *Recognizer) settle() {
	st := r.t.State()
	x, y := r.t.ConstrainBoundary(st.TranslateX, st.TranslateY)
	r.t.Apply(transform.Translate(x, y))
}

func (r *Recognizer) forgetTaps() {
	r.tapCount = 0
	r.lastTapTime = time.Time{}
}

func (r *Recognizer) detectDoubleTap(ev TouchEvent) {
	if len(ev.Touches) != 0 || len(ev.Changed) != 1 || r.moved || r.pinched {
		r.forgetTaps()
		return
	}

	now := r.eventTime(ev)
	p := r.local(ev.Changed[0])
	if !r.lastTapTime.IsZero() && now.Sub(r.lastTapTime) < r.tapTimeout && p.Distance(r.lastTap) < r.tapDistance {
		r.tapCount++
		if r.tapCount == 2 {
			r.tapCount = 0
			r.doubleTap(p)
			return
		}
	} else {
		r.tapCount = 1
	}
	r.lastTapTime = now
	r.lastTap = p
}

// doubleTap toggles between scale 1 and 2 around p, then settles inside
// the boundary on the following frame.
func (r *Recognizer) doubleTap(p geometry.Point2D) {
	r.stopInertia()

	st := r.t.State()
	t := geometry.NewPoint2D(st.TranslateX, st.TranslateY)
	var next geometry.Point2D
	scale := 1.0
	if st.Scale == 1 {
		next = t.Sub(p).Scale(2).Add(p)
		scale = 2
	} else {
		next = t.Sub(p).Scale(1 / st.Scale).Add(p)
	}
	r.t.Apply(transform.Zoom(next.X, next.Y, scale))

	if r.settlePending {
		r.frames.CancelFrame(r.settleFrame)
	}
	r.settlePending = true
	r.settleFrame = r.frames.ScheduleFrame(func() {
		r.settlePending = false
		r.settle()
	})
}

func (r *Recognizer) startInertia() {
	first, last := r.history.Oldest(), r.history.Newest()
	dt := float64(last.T.Sub(first.T)) / float64(time.Millisecond)
	if dt == 0 {
		r.settle()
		return
	}
	d := last.P.Sub(first.P)
	r.velocity = d.Scale(r.gain / math.Abs(dt))
	r.inertiaActive = true
	r.inertiaFrame = r.frames.ScheduleFrame(r.stepInertia)
}

func (r *Recognizer) stepInertia() {
	if !r.inertiaActive {
		return
	}
	next := r.translate().Add(r.velocity)
	r.velocity = r.velocity.Scale(r.damping)
	if math.Abs(r.velocity.X) < minVelocity && math.Abs(r.velocity.Y) < minVelocity {
		r.inertiaActive = false
		return
	}
	x, y := r.t.ConstrainBoundary(next.X, next.Y)
	r.t.Apply(transform.Translate(x, y))
	r.inertiaFrame = r.frames.ScheduleFrame(r.stepInertia)
}

func (r *Recognizer) stopInertia() {
	if !r.inertiaActive {
		return
	}
	r.frames.CancelFrame(r.inertiaFrame)
	r.inertiaActive = false
}
