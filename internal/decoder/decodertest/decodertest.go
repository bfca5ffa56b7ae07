// Package decodertest provides a scriptable in-memory decoder for tests.
package decodertest

import (
	"context"
	"errors"
	"sync"

	"mobile-pdf/internal/decoder"
	"mobile-pdf/pkg/geometry"

	"github.com/gogpu/gg"
)

// ErrUnknownSource is wrapped in the DecodeError for unregistered sources.
var ErrUnknownSource = errors.New("unknown source")

// Decoder serves registered documents by source name.
type Decoder struct {
	mu    sync.Mutex
	docs  map[string]*Document
	gates map[string]chan struct{}
	opens []string
}

// New returns an empty decoder.
func New() *Decoder {
	return &Decoder{
		docs:  make(map[string]*Document),
		gates: make(map[string]chan struct{}),
	}
}

// Add registers doc under name.
func (d *Decoder) Add(name string, doc *Document) {
	d.mu.Lock()
	d.docs[name] = doc
	d.mu.Unlock()
}

// Hold makes Open block for name until the returned function is called.
func (d *Decoder) Hold(name string) (release func()) {
	ch := make(chan struct{})
	d.mu.Lock()
	d.gates[name] = ch
	d.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Opens returns the names passed to Open, in call order.
func (d *Decoder) Opens() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.opens...)
}

// Open implements [decoder.Decoder].
func (d *Decoder) Open(ctx context.Context, src decoder.Source) (decoder.Document, error) {
	d.mu.Lock()
	d.opens = append(d.opens, src.Name)
	gate := d.gates[src.Name]
	doc := d.docs[src.Name]
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &decoder.DecodeError{Source: src.Name, Err: ctx.Err()}
		}
	}
	if doc == nil {
		return nil, &decoder.DecodeError{Source: src.Name, Err: ErrUnknownSource}
	}
	return doc, nil
}

// Document is a fake document whose pages have fixed natural sizes.
type Document struct {
	mu      sync.Mutex
	sizes   []geometry.Size
	fail    map[int]error
	hold    bool
	gates   map[int]chan struct{}
	renders []int
	aborted []int
	open    map[int]int
	closed  bool
}

// NewDocument creates a document with one page per size.
func NewDocument(sizes ...geometry.Size) *Document {
	return &Document{
		sizes: sizes,
		fail:  make(map[int]error),
		gates: make(map[int]chan struct{}),
		open:  make(map[int]int),
	}
}

// Uniform creates an n-page document with identical pages.
func Uniform(n int, width, height float64) *Document {
	sizes := make([]geometry.Size, n)
	for i := range sizes {
		sizes[i] = geometry.NewSize(width, height)
	}
	return NewDocument(sizes...)
}

// FailPage makes every render of the page return err.
func (d *Document) FailPage(index int, err error) {
	d.mu.Lock()
	d.fail[index] = err
	d.mu.Unlock()
}

// HoldRenders makes Render block until Finish is called for the page or
// the render is cancelled.
func (d *Document) HoldRenders() {
	d.mu.Lock()
	d.hold = true
	d.mu.Unlock()
}

func (d *Document) gateLocked(index int) chan struct{} {
	ch, ok := d.gates[index]
	if !ok {
		ch = make(chan struct{})
		d.gates[index] = ch
	}
	return ch
}

// Finish lets held renders of the page complete.
func (d *Document) Finish(index int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := d.gateLocked(index)
	select {
	case <-ch:
	default:
		close(ch)
	}
}

// Renders returns the pages passed to Render, in call order.
func (d *Document) Renders() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.renders...)
}

// Aborted returns the pages whose render was cancelled.
func (d *Document) Aborted() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.aborted...)
}

// OpenPages returns the number of pages fetched and not yet released.
func (d *Document) OpenPages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.open {
		n += c
	}
	return n
}

// Closed reports whether Close was called.
func (d *Document) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// PageCount implements [decoder.Document].
func (d *Document) PageCount() int { return len(d.sizes) }

// Page implements [decoder.Document].
func (d *Document) Page(ctx context.Context, index int) (decoder.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 1 || index > len(d.sizes) {
		return nil, errors.New("page out of range")
	}
	d.mu.Lock()
	d.open[index]++
	d.mu.Unlock()
	return &Page{doc: d, index: index, size: d.sizes[index-1]}, nil
}

// Close implements [decoder.Document].
func (d *Document) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// Page is a page of a fake Document.
type Page struct {
	doc      *Document
	index    int
	size     geometry.Size
	released bool
}

// NaturalSize implements [decoder.Page].
func (p *Page) NaturalSize(scale float64) geometry.Size {
	return p.size.Scale(scale)
}

// Render implements [decoder.Page].  It clears dc to white.
func (p *Page) Render(ctx context.Context, dc *gg.Context, scale float64) error {
	d := p.doc
	d.mu.Lock()
	d.renders = append(d.renders, p.index)
	var gate chan struct{}
	if d.hold {
		gate = d.gateLocked(p.index)
	}
	failure := d.fail[p.index]
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}
	if ctx.Err() != nil {
		d.mu.Lock()
		d.aborted = append(d.aborted, p.index)
		d.mu.Unlock()
		return decoder.ErrRenderAborted
	}
	if failure != nil {
		return failure
	}
	dc.ClearWithColor(gg.White)
	return nil
}

// Release implements [decoder.Page].
func (p *Page) Release() {
	if p.released {
		return
	}
	p.released = true
	p.doc.mu.Lock()
	p.doc.open[p.index]--
	p.doc.mu.Unlock()
}
