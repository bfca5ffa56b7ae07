// Package render keeps one placeholder per page of the loaded document
// and renders only the pages near the viewport.
//
// A Manager is confined to the loop goroutine.  Decoding and page
// rendering run on worker goroutines and post their results back through
// the host's Poster; a result is applied only if the page entry still
// holds the task that produced it.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"mobile-pdf/internal/decoder"
	"mobile-pdf/internal/host"
	"mobile-pdf/internal/logging"

	"github.com/gogpu/gg"
)

// ErrSuperseded is reported to a load that was replaced by a newer load
// or an unload before it finished.
var ErrSuperseded = errors.New("load superseded")

var errNoWidth = errors.New("first page has no width")

// Status is the render state of one page.
type Status int

const (
	Pending Status = iota
	Loading
	Complete
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Loading:
		return "loading"
	case Complete:
		return "complete"
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

type renderTask struct {
	cancel context.CancelFunc
}

// PageEntry is the manager's record of one page.
type PageEntry struct {
	Index       int // 1-based
	Key         string
	Placeholder host.Placeholder

	status Status
	canvas *gg.Context
	task   *renderTask
}

func (e *PageEntry) Status() Status { return e.status }

// Canvas returns the rendered page, or nil.
func (e *PageEntry) Canvas() *gg.Context { return e.canvas }

func (e *PageEntry) String() string {
	return fmt.Sprintf("page %d (%s)", e.Index, e.status)
}

// Hooks are optional callbacks run on the loop goroutine.
type Hooks struct {
	BeforeRender     func()
	StartLoading     func()
	BeginInsertPages func(total int)
	CompleteLoading  func(pages []*PageEntry, doc decoder.Document, total int)
	StartRendering   func(e *PageEntry)
	EndRendering     func(e *PageEntry)
	LoadFailed       func(err error)
}

// Config configures a Manager.
type Config struct {
	// Oversampling multiplies the display scale when rasterizing.
	// Placeholder heights are divided by the same factor.
	Oversampling float64

	// VisibilityMargin grows the viewport vertically, as a fraction of
	// its height, when deciding which pages to render.
	VisibilityMargin float64

	// Threshold is the fraction of a page that must be inside the
	// grown viewport.
	Threshold float64

	Hooks Hooks
}

// DefaultConfig returns 3x oversampling, a one-viewport margin and a 10%
// threshold.
func DefaultConfig() Config {
	return Config{
		Oversampling:     3,
		VisibilityMargin: 1,
		Threshold:        0.1,
	}
}

// Manager owns the page entries of the loaded document.
type Manager struct {
	cfg       Config
	dec       decoder.Decoder
	surf      host.Surface
	container host.PageContainer
	viewport  host.Element
	poster    host.Poster
	log       *slog.Logger

	gen        uint64
	loadCancel context.CancelFunc

	doc      decoder.Document
	base     float64
	pages    []*PageEntry
	byTarget map[host.Element]*PageEntry
	observer host.VisibilityObserver
	keys     uint64
}

// New creates a manager that lays pages out in container and watches
// their visibility relative to viewport.
func New(dec decoder.Decoder, surf host.Surface, container host.PageContainer, viewport host.Element, poster host.Poster, cfg Config) *Manager {
	if cfg.Oversampling <= 0 {
		cfg.Oversampling = 1
	}
	return &Manager{
		cfg:       cfg,
		dec:       dec,
		surf:      surf,
		container: container,
		viewport:  viewport,
		poster:    poster,
		log:       logging.For("render"),
		byTarget:  make(map[host.Element]*PageEntry),
	}
}

// Pages returns the page entries in document order.
func (m *Manager) Pages() []*PageEntry {
	return append([]*PageEntry(nil), m.pages...)
}

// Document returns the loaded document, or nil.
func (m *Manager) Document() decoder.Document { return m.doc }

// BaseScale returns the rasterization scale of the loaded document.
func (m *Manager) BaseScale() float64 { return m.base }

// Load replaces the current document with src.  done, if not nil, is
// called on the loop goroutine with the outcome: nil, a
// *decoder.DecodeError, or ErrSuperseded.
func (m *Manager) Load(ctx context.Context, src decoder.Source, done func(error)) {
	if done == nil {
		done = func(error) {}
	}
	m.gen++
	gen := m.gen

	if h := m.cfg.Hooks.BeforeRender; h != nil {
		h()
	}
	if h := m.cfg.Hooks.StartLoading; h != nil {
		h()
	}
	m.teardown()

	lctx, cancel := context.WithCancel(ctx)
	m.loadCancel = cancel
	go func() {
		doc, width, err := open(lctx, m.dec, src)
		m.poster.Post(func() {
			m.finishLoad(gen, src, doc, width, err, done)
		})
	}()
}

// open decodes src and measures its first page.
func open(ctx context.Context, dec decoder.Decoder, src decoder.Source) (decoder.Document, float64, error) {
	doc, err := dec.Open(ctx, src)
	if err != nil {
		return nil, 0, err
	}
	if doc.PageCount() < 1 {
		doc.Close()
		return nil, 0, &decoder.DecodeError{Source: src.Name, Err: errors.New("document has no pages")}
	}
	first, err := doc.Page(ctx, 1)
	if err != nil {
		doc.Close()
		return nil, 0, err
	}
	width := first.NaturalSize(1).Width
	first.Release()
	if width <= 0 {
		doc.Close()
		return nil, 0, &decoder.DecodeError{Source: src.Name, Err: errNoWidth}
	}
	return doc, width, nil
}

func (m *Manager) finishLoad(gen uint64, src decoder.Source, doc decoder.Document, width float64, err error, done func(error)) {
	if gen != m.gen {
		if doc != nil {
			doc.Close()
		}
		done(ErrSuperseded)
		return
	}
	if m.loadCancel != nil {
		m.loadCancel()
		m.loadCancel = nil
	}

	if err != nil {
		var de *decoder.DecodeError
		if !errors.As(err, &de) {
			err = &decoder.DecodeError{Source: src.Name, Err: err}
		}
		m.log.Error("document load failed", "err", err)
		if h := m.cfg.Hooks.LoadFailed; h != nil {
			h(err)
		}
		done(err)
		return
	}

	n := doc.PageCount()
	m.doc = doc
	m.base = m.container.ContainerWidth() / width * m.cfg.Oversampling
	m.log.Info("document loaded", "source", src.Name, "pages", n, "base_scale", m.base)

	if h := m.cfg.Hooks.BeginInsertPages; h != nil {
		h(n)
	}
	m.observer = m.surf.ObserveVisibility(host.VisibilityOptions{
		Root:      m.viewport,
		MarginY:   m.cfg.VisibilityMargin,
		Threshold: m.cfg.Threshold,
	}, m.onVisibility)
	m.pages = make([]*PageEntry, 0, n)
	for i := 1; i <= n; i++ {
		m.keys++
		ph := m.container.AddPlaceholder(i)
		e := &PageEntry{
			Index:       i,
			Key:         "page-" + strconv.FormatUint(m.keys, 36),
			Placeholder: ph,
		}
		m.pages = append(m.pages, e)
		m.byTarget[ph] = e
		m.observer.Observe(ph)
	}
	if h := m.cfg.Hooks.CompleteLoading; h != nil {
		h(m.Pages(), doc, n)
	}
	done(nil)
}

// Unload releases the current document and cancels any pending load.
func (m *Manager) Unload() {
	m.gen++
	m.teardown()
}

func (m *Manager) teardown() {
	if m.loadCancel != nil {
		m.loadCancel()
		m.loadCancel = nil
	}
	if m.observer != nil {
		m.observer.Disconnect()
		m.observer = nil
	}
	for _, e := range m.pages {
		m.evict(e)
	}
	if m.doc != nil {
		if err := m.doc.Close(); err != nil {
			m.log.Warn("closing document", "err", err)
		}
		m.doc = nil
		m.log.Info("document closed")
	}
	m.pages = nil
	clear(m.byTarget)
	m.container.Clear()
	m.base = 0
}

func (m *Manager) onVisibility(entries []host.VisibilityEntry) {
	for _, v := range entries {
		e := m.byTarget[v.Target]
		if e == nil {
			continue
		}
		m.log.Debug("visibility changed", "page", e.Index, "visible", v.Intersecting, "ratio", v.Ratio)
		switch {
		case v.Intersecting && e.status == Pending:
			m.startRender(e)
		case !v.Intersecting && len(m.pages) > 1:
			m.evict(e)
		}
	}
}

func (m *Manager) startRender(e *PageEntry) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &renderTask{cancel: cancel}
	e.status = Loading
	e.task = t
	if h := m.cfg.Hooks.StartRendering; h != nil {
		h(e)
	}
	m.log.Debug("rendering page", "page", e.Index)

	doc, base, index := m.doc, m.base, e.Index
	go func() {
		dc, err := renderPage(ctx, doc, index, base)
		m.poster.Post(func() { m.finishRender(e, t, dc, err) })
	}()
}

// renderPage runs on a worker goroutine.
func renderPage(ctx context.Context, doc decoder.Document, index int, scale float64) (*gg.Context, error) {
	page, err := doc.Page(ctx, index)
	if err != nil {
		return nil, err
	}
	defer page.Release()

	size := page.NaturalSize(scale)
	w := max(1, int(math.Ceil(size.Width)))
	h := max(1, int(math.Ceil(size.Height)))
	dc := gg.NewContext(w, h)
	if err := page.Render(ctx, dc, scale); err != nil {
		dc.Close()
		return nil, err
	}
	return dc, nil
}

func (m *Manager) finishRender(e *PageEntry, t *renderTask, dc *gg.Context, err error) {
	if e.task != t {
		if dc != nil {
			dc.Close()
		}
		return
	}
	e.task = nil
	t.cancel()

	if err != nil {
		e.status = Pending
		if !decoder.IsAborted(err) {
			m.log.Warn("page render failed", "err", &decoder.RenderError{Page: e.Index, Err: err})
		}
		return
	}

	e.status = Complete
	e.canvas = dc
	e.Placeholder.Attach(dc)
	e.Placeholder.SetHeight(float64(dc.Height()) / m.cfg.Oversampling)
	if h := m.cfg.Hooks.EndRendering; h != nil {
		h(e)
	}
	m.log.Debug("page rendered", "page", e.Index, "width", dc.Width(), "height", dc.Height())
}

// evict cancels and releases whatever the page holds.
func (m *Manager) evict(e *PageEntry) {
	if e.task != nil {
		e.task.cancel()
		e.task = nil
	}
	if e.canvas != nil {
		e.Placeholder.Detach()
		e.canvas.Close()
		e.canvas = nil
	}
	e.status = Pending
}
