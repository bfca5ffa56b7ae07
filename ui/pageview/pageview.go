// Package pageview provides a fyne widget that displays a page stack and
// feeds pointer input to the gesture recognizer as touch events.
//
// Fyne reports a single pointer, so drags become one-finger touch
// sequences and wheel steps are replayed as a two-finger pinch around the
// cursor.
package pageview

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"mobile-pdf/internal/app"
	"mobile-pdf/internal/gesture"
	"mobile-pdf/internal/host"
	"mobile-pdf/internal/pagestack"
	"mobile-pdf/pkg/geometry"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	xdraw "golang.org/x/image/draw"
)

const (
	// zoomStep is the scale change of one wheel notch.
	zoomStep = 1.25

	// wheelNotch is the scroll distance fyne reports for one notch.
	wheelNotch = 10

	// pinchSpan is the finger distance of a synthetic pinch.
	pinchSpan = 100
)

var (
	backdrop  = image.NewUniform(app.PageBackdrop)
	blankPage = image.NewUniform(color.White)
)

// PageView displays a pagestack.Stack.
type PageView struct {
	widget.BaseWidget

	stack  *pagestack.Stack
	loop   host.Poster
	raster *fynecanvas.Raster
	now    func() time.Time

	// Handlers are only touched on the loop goroutine.
	handlers []gesture.TouchHandler

	// Pointer state, touched on the fyne event goroutine.
	dragging bool
	last     fyne.Position
}

var _ gesture.InputSource = (*PageView)(nil)

// New creates a view of stack.  Input is posted to loop.
func New(stack *pagestack.Stack, loop host.Poster) *PageView {
	pv := &PageView{
		stack: stack,
		loop:  loop,
		now:   time.Now,
	}
	pv.raster = fynecanvas.NewRaster(pv.draw)
	pv.raster.ScaleMode = fynecanvas.ImageScaleSmooth
	stack.OnChange(pv.raster.Refresh)
	pv.ExtendBaseWidget(pv)
	return pv
}

// AddTouchHandler implements gesture.InputSource.
func (pv *PageView) AddTouchHandler(h gesture.TouchHandler) {
	pv.handlers = append(pv.handlers, h)
}

// RemoveTouchHandler implements gesture.InputSource.
func (pv *PageView) RemoveTouchHandler(h gesture.TouchHandler) {
	for i, x := range pv.handlers {
		if x == h {
			pv.handlers = append(pv.handlers[:i], pv.handlers[i+1:]...)
			return
		}
	}
}

func touchAt(id int, p fyne.Position) gesture.Touch {
	return gesture.Touch{ID: id, X: float64(p.X), Y: float64(p.Y)}
}

type phase int

const (
	phaseStart phase = iota
	phaseMove
	phaseEnd
)

// dispatch delivers ev to every handler on the loop goroutine.
func (pv *PageView) dispatch(ph phase, ev gesture.TouchEvent) {
	pv.loop.Post(func() {
		for _, h := range pv.handlers {
			switch ph {
			case phaseStart:
				h.TouchStart(ev)
			case phaseMove:
				h.TouchMove(ev)
			case phaseEnd:
				h.TouchEnd(ev)
			}
		}
	})
}

// Dragged turns a mouse drag into a one-finger touch move.
func (pv *PageView) Dragged(ev *fyne.DragEvent) {
	now := pv.now()
	if !pv.dragging {
		pv.dragging = true
		start := ev.Position.Subtract(ev.Dragged)
		tc := []gesture.Touch{touchAt(0, start)}
		pv.dispatch(phaseStart, gesture.TouchEvent{Touches: tc, Changed: tc, Time: now})
	}
	pv.last = ev.Position
	tc := []gesture.Touch{touchAt(0, ev.Position)}
	pv.dispatch(phaseMove, gesture.TouchEvent{Touches: tc, Changed: tc, Time: now})
}

// DragEnd lifts the finger.
func (pv *PageView) DragEnd() {
	if !pv.dragging {
		return
	}
	pv.dragging = false
	tc := []gesture.Touch{touchAt(0, pv.last)}
	pv.dispatch(phaseEnd, gesture.TouchEvent{Changed: tc, Time: pv.now()})
}

// Tapped delivers a touch that starts and ends in place.
func (pv *PageView) Tapped(ev *fyne.PointEvent) {
	now := pv.now()
	tc := []gesture.Touch{touchAt(0, ev.Position)}
	pv.dispatch(phaseStart, gesture.TouchEvent{Touches: tc, Changed: tc, Time: now})
	pv.dispatch(phaseEnd, gesture.TouchEvent{Changed: tc, Time: now})
}

// Scrolled replays a wheel step as a pinch centered on the cursor.
func (pv *PageView) Scrolled(ev *fyne.ScrollEvent) {
	if ev.Scrolled.DY == 0 {
		return
	}
	factor := math.Pow(zoomStep, float64(ev.Scrolled.DY)/wheelNotch)
	c := ev.Position
	pair := func(span float64) []gesture.Touch {
		d := float32(span / 2)
		return []gesture.Touch{
			touchAt(0, fyne.NewPos(c.X-d, c.Y)),
			touchAt(1, fyne.NewPos(c.X+d, c.Y)),
		}
	}
	now := pv.now()
	start := pair(pinchSpan)
	moved := pair(pinchSpan * factor)
	pv.dispatch(phaseStart, gesture.TouchEvent{Touches: start, Changed: start, Time: now})
	pv.dispatch(phaseMove, gesture.TouchEvent{Touches: moved, Changed: moved, Time: now})
	pv.dispatch(phaseEnd, gesture.TouchEvent{Changed: moved, Time: now})
}

// CreateRenderer implements fyne.Widget.
func (pv *PageView) CreateRenderer() fyne.WidgetRenderer {
	return &pageViewRenderer{view: pv}
}

// draw is the raster drawing function.
func (pv *PageView) draw(w, h int) image.Image {
	output := image.NewRGBA(image.Rect(0, 0, w, h))
	pv.stack.Composite(func(viewport geometry.Size, tiles []pagestack.Tile) {
		scale := 1.0
		if viewport.Width > 0 {
			scale = float64(w) / viewport.Width
		}
		Composite(output, scale, tiles)
	})
	return output
}

// Composite paints tiles onto dst, scaling viewport coordinates by scale.
// Unrendered pages are drawn blank.
func Composite(dst *image.RGBA, scale float64, tiles []pagestack.Tile) {
	draw.Draw(dst, dst.Bounds(), backdrop, image.Point{}, draw.Src)
	for _, t := range tiles {
		r := image.Rect(
			int(math.Floor(t.Rect.X*scale)),
			int(math.Floor(t.Rect.Y*scale)),
			int(math.Ceil((t.Rect.X+t.Rect.Width)*scale)),
			int(math.Ceil((t.Rect.Y+t.Rect.Height)*scale)),
		)
		if r.Empty() {
			continue
		}
		if t.Image == nil {
			draw.Draw(dst, r.Intersect(dst.Bounds()), blankPage, image.Point{}, draw.Src)
			continue
		}
		xdraw.ApproxBiLinear.Scale(dst, r, t.Image, t.Image.Bounds(), xdraw.Src, nil)
	}
}

type pageViewRenderer struct {
	view *PageView
}

func (r *pageViewRenderer) Layout(size fyne.Size) {
	r.view.raster.Resize(size)
	s := geometry.NewSize(float64(size.Width), float64(size.Height))
	stack := r.view.stack
	r.view.loop.Post(func() { stack.SetViewportSize(s) })
}

func (r *pageViewRenderer) MinSize() fyne.Size {
	return fyne.NewSize(200, 200)
}

func (r *pageViewRenderer) Refresh() {
	r.view.raster.Refresh()
}

func (r *pageViewRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.view.raster}
}

func (r *pageViewRenderer) Destroy() {}
