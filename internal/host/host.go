// Package host defines the display primitives the viewer core relies on,
// and the event loop that all core state is confined to.
//
// A host (the fyne page view, or the pure-Go page stack used in tests)
// provides layout measurement, a compositor transform, proximity
// visibility signals and a page container.  Frame pacing and task posting
// come from [Loop].
package host

import (
	"mobile-pdf/pkg/geometry"

	"github.com/gogpu/gg"
	"seehuhn.de/go/geom/matrix"
)

// Element is an opaque handle to a laid-out display node.
type Element any

// FrameID identifies a scheduled frame callback.
type FrameID uint64

// FrameScheduler runs callbacks on the next animation frame.
type FrameScheduler interface {
	ScheduleFrame(fn func()) FrameID
	CancelFrame(id FrameID)
}

// Poster runs functions on the loop goroutine.
type Poster interface {
	Post(fn func())
}

// Measurer reports the current bounding rectangle of an element in
// viewport coordinates, including any applied transform.
type Measurer interface {
	MeasureRect(el Element) geometry.Rect
}

// Compositor applies a visual transform to an element without changing
// its layout.
type Compositor interface {
	SetTransform(el Element, m matrix.Matrix)
}

// VisibilityOptions configures a proximity observer.
type VisibilityOptions struct {
	// Root is the element whose box, expanded by the margins, is the
	// observation area.
	Root Element

	// MarginX and MarginY grow the root box on each side, as a fraction
	// of the root's own width and height.
	MarginX, MarginY float64

	// Threshold is the minimum fraction of a target that must lie inside
	// the observation area for it to count as intersecting.
	Threshold float64
}

// VisibilityEntry reports a change in a target's visibility.
type VisibilityEntry struct {
	Target       Element
	Ratio        float64
	Intersecting bool
}

// VisibilityObserver tracks a set of targets.
type VisibilityObserver interface {
	Observe(el Element)
	Unobserve(el Element)
	Disconnect()
}

// Surface is the set of display primitives needed by the transform
// controller and the render manager.
type Surface interface {
	Measurer
	Compositor

	// ObserveVisibility creates an observer.  fn is called on the loop
	// goroutine with the entries whose visibility changed, and once for
	// each newly observed target.
	ObserveVisibility(opts VisibilityOptions, fn func([]VisibilityEntry)) VisibilityObserver
}

// Placeholder reserves layout space for one page.
type Placeholder interface {
	// Page returns the 1-based page number the placeholder was created for.
	Page() int

	SetHeight(h float64)

	// Attach shows a rendered canvas inside the placeholder.
	Attach(dc *gg.Context)

	// Detach removes the canvas, if any.  The caller owns the canvas.
	Detach()
}

// PageContainer holds the placeholders of the loaded document, in order.
type PageContainer interface {
	// ContainerWidth is the layout width available to one page.
	ContainerWidth() float64

	// AddPlaceholder creates and mounts a placeholder at the end of the
	// container.
	AddPlaceholder(page int) Placeholder

	// Clear removes every placeholder.
	Clear()
}
