// Package pagestack is a pure-Go layout model of a vertically stacked page
// column inside a clipping viewport.
//
// A Stack implements [host.Surface] and [host.PageContainer]: it measures
// the viewport, the transformed content column and each page placeholder,
// applies compositor transforms, and evaluates proximity observers.  The
// fyne page view draws a Stack; tests drive one directly.
package pagestack

import (
	"image"
	"sync"

	"mobile-pdf/internal/host"
	"mobile-pdf/pkg/geometry"

	"github.com/gogpu/gg"
	"seehuhn.de/go/geom/matrix"
)

// DefaultPadding is the horizontal gap between the viewport edge and the
// page column.
const DefaultPadding = 4

type elementKind int

const (
	kindViewport elementKind = iota
	kindContent
)

type element struct {
	kind elementKind
}

// Stack is a column of page placeholders.  Its methods are safe for
// concurrent use; observer callbacks are delivered on frames of the
// scheduler passed to New.
type Stack struct {
	mu sync.RWMutex

	frames  host.FrameScheduler
	size    geometry.Size
	padding float64

	viewport *element
	content  *element
	m        matrix.Matrix

	pages     []*Placeholder
	observers []*observer

	checkScheduled bool
	listeners      []func()
}

// New creates an empty stack for a viewport of the given size.
func New(frames host.FrameScheduler, viewport geometry.Size) *Stack {
	return &Stack{
		frames:   frames,
		size:     viewport,
		padding:  DefaultPadding,
		viewport: &element{kind: kindViewport},
		content:  &element{kind: kindContent},
		m:        matrix.Identity,
	}
}

// Viewport returns the clipping element.
func (s *Stack) Viewport() host.Element { return s.viewport }

// Content returns the transformed page column element.
func (s *Stack) Content() host.Element { return s.content }

// OnChange registers fn to be called whenever anything visible changes.
// fn may be called from any goroutine.
func (s *Stack) OnChange(fn func()) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Stack) changed() {
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// SetViewportSize resizes the viewport.  Placeholders that have not been
// given an explicit height follow the viewport height.
func (s *Stack) SetViewportSize(size geometry.Size) {
	s.mu.Lock()
	s.size = size
	s.scheduleCheckLocked()
	s.mu.Unlock()
	s.changed()
}

// ViewportSize returns the current viewport size.
func (s *Stack) ViewportSize() geometry.Size {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Transform returns the transform last applied to the content element.
func (s *Stack) Transform() matrix.Matrix {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m
}

// ContainerWidth implements [host.PageContainer].
func (s *Stack) ContainerWidth() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.columnWidthLocked()
}

func (s *Stack) columnWidthLocked() float64 {
	w := s.size.Width - 2*s.padding
	if w < 0 {
		return 0
	}
	return w
}

// AddPlaceholder implements [host.PageContainer].
func (s *Stack) AddPlaceholder(page int) host.Placeholder {
	p := &Placeholder{stack: s, page: page, auto: true}
	s.mu.Lock()
	s.pages = append(s.pages, p)
	s.scheduleCheckLocked()
	s.mu.Unlock()
	s.changed()
	return p
}

// Clear implements [host.PageContainer].
func (s *Stack) Clear() {
	s.mu.Lock()
	for _, p := range s.pages {
		p.dc = nil
		p.img = nil
	}
	s.pages = nil
	s.mu.Unlock()
	s.changed()
}

// Len returns the number of placeholders.
func (s *Stack) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}

// SetTransform implements [host.Compositor].  Only the content element
// can be transformed.
func (s *Stack) SetTransform(el host.Element, m matrix.Matrix) {
	if el != host.Element(s.content) {
		return
	}
	s.mu.Lock()
	s.m = m
	s.scheduleCheckLocked()
	s.mu.Unlock()
	s.changed()
}

// MeasureRect implements [host.Measurer].
func (s *Stack) MeasureRect(el host.Element) geometry.Rect {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.measureLocked(el)
}

func (s *Stack) measureLocked(el host.Element) geometry.Rect {
	switch el := el.(type) {
	case *element:
		if el == s.viewport {
			return geometry.NewRect(0, 0, s.size.Width, s.size.Height)
		}
		if el == s.content {
			return s.boxLocked(0, s.contentHeightLocked())
		}
	case *Placeholder:
		if el.stack == s {
			offset := 0.0
			for _, p := range s.pages {
				if p == el {
					return s.boxLocked(offset, p.heightLocked())
				}
				offset += p.heightLocked()
			}
		}
	}
	return geometry.Rect{}
}

// boxLocked maps a horizontal band of the untransformed column to
// viewport coordinates.  The transform origin is the column's top-left.
func (s *Stack) boxLocked(top, height float64) geometry.Rect {
	sx, sy := s.m[0], s.m[3]
	return geometry.Rect{
		X:      s.padding + s.m[4],
		Y:      s.m[5] + top*sy,
		Width:  s.columnWidthLocked() * sx,
		Height: height * sy,
	}
}

func (s *Stack) contentHeightLocked() float64 {
	total := 0.0
	for _, p := range s.pages {
		total += p.heightLocked()
	}
	return total
}

// CurrentPage returns the page under the vertical centre of the viewport,
// or 0 if there is none.
func (s *Stack) CurrentPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mid := s.size.Height / 2
	offset := 0.0
	for _, p := range s.pages {
		h := p.heightLocked()
		r := s.boxLocked(offset, h)
		if mid >= r.Y && mid < r.Y+r.Height {
			return p.page
		}
		offset += h
	}
	return 0
}

// Tile is a page placeholder as it currently appears in the viewport.
type Tile struct {
	Page  int
	Rect  geometry.Rect
	Image image.Image // nil until the page is rendered
}

// Composite calls fn with the tiles that overlap the viewport, under the
// stack's read lock.
func (s *Stack) Composite(fn func(viewport geometry.Size, tiles []Tile)) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := geometry.NewRect(0, 0, s.size.Width, s.size.Height)
	var tiles []Tile
	offset := 0.0
	for _, p := range s.pages {
		h := p.heightLocked()
		r := s.boxLocked(offset, h)
		offset += h
		if !r.Intersects(view) {
			continue
		}
		tiles = append(tiles, Tile{Page: p.page, Rect: r, Image: p.img})
	}
	fn(s.size, tiles)
}

// Placeholder reserves space for one page in a Stack.
type Placeholder struct {
	stack  *Stack
	page   int
	height float64
	auto   bool
	dc     *gg.Context
	img    image.Image // snapshot of dc taken on attach
}

// Page implements [host.Placeholder].
func (p *Placeholder) Page() int { return p.page }

func (p *Placeholder) heightLocked() float64 {
	if p.auto {
		return p.stack.size.Height
	}
	return p.height
}

// Height returns the reserved layout height.
func (p *Placeholder) Height() float64 {
	p.stack.mu.RLock()
	defer p.stack.mu.RUnlock()
	return p.heightLocked()
}

// SetHeight implements [host.Placeholder].
func (p *Placeholder) SetHeight(h float64) {
	s := p.stack
	s.mu.Lock()
	p.height = h
	p.auto = false
	s.scheduleCheckLocked()
	s.mu.Unlock()
	s.changed()
}

// Attach implements [host.Placeholder].
func (p *Placeholder) Attach(dc *gg.Context) {
	s := p.stack
	var img image.Image
	if dc != nil {
		img = dc.Image()
	}
	s.mu.Lock()
	p.dc = dc
	p.img = img
	s.mu.Unlock()
	s.changed()
}

// Detach implements [host.Placeholder].
func (p *Placeholder) Detach() {
	s := p.stack
	s.mu.Lock()
	p.dc = nil
	p.img = nil
	s.mu.Unlock()
	s.changed()
}

// Attached reports whether a canvas is shown in the placeholder.
func (p *Placeholder) Attached() bool {
	p.stack.mu.RLock()
	defer p.stack.mu.RUnlock()
	return p.dc != nil
}
