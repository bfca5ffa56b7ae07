// Package pdfdoc implements the document decoder for PDF files.
//
// Pages are rasterized from their content streams: path construction and
// painting operators are replayed onto a gg context through the page's
// current transformation matrix.  Text and images are not drawn.
package pdfdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"mobile-pdf/internal/decoder"
	"mobile-pdf/internal/logging"
	"mobile-pdf/pkg/geometry"

	"github.com/gogpu/gg"
	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/font/loader"
	"seehuhn.de/go/pdf/graphics"
	"seehuhn.de/go/pdf/pagetree"
	"seehuhn.de/go/pdf/reader"
)

var (
	errNoPages = errors.New("document has no pages")
	errClosed  = errors.New("document is closed")
	errNoBox   = errors.New("page has no media box")
)

// Decoder opens PDF documents.
type Decoder struct{}

// New returns a PDF decoder.
func New() *Decoder { return &Decoder{} }

// Open implements [decoder.Decoder].
func (*Decoder) Open(ctx context.Context, src decoder.Source) (decoder.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := pdf.NewReader(bytes.NewReader(src.Data), int64(len(src.Data)), nil)
	if err != nil {
		return nil, &decoder.DecodeError{Source: src.Name, Err: err}
	}
	n, err := pagetree.NumPages(r)
	if err != nil {
		r.Close()
		return nil, &decoder.DecodeError{Source: src.Name, Err: err}
	}
	if n == 0 {
		r.Close()
		return nil, &decoder.DecodeError{Source: src.Name, Err: errNoPages}
	}
	logging.For("pdfdoc").Info("document opened", "source", src.Name, "pages", n)
	return &Document{name: src.Name, r: r, n: n}, nil
}

// Document is an open PDF file.  The underlying reader is not safe for
// concurrent use, so page access and rendering are serialized.
type Document struct {
	name string

	mu     sync.Mutex
	r      *pdf.Reader
	n      int
	closed bool
}

// PageCount implements [decoder.Document].
func (d *Document) PageCount() int { return d.n }

// Page implements [decoder.Document].
func (d *Document) Page(ctx context.Context, index int) (decoder.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 1 || index > d.n {
		return nil, fmt.Errorf("page %d out of range 1-%d", index, d.n)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errClosed
	}
	dict, err := pagetree.GetPage(d.r, index-1)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", index, err)
	}
	box, err := pageBox(d.r, dict)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", index, err)
	}
	rotate, err := pageRotation(d.r, dict)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", index, err)
	}
	return &Page{doc: d, index: index, dict: dict, box: *box, rotate: rotate}, nil
}

// Close implements [decoder.Document].
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.r.Close()
}

// pageBox returns the crop box, falling back to the media box.
func pageBox(r pdf.Getter, dict pdf.Dict) (*pdf.Rectangle, error) {
	for _, key := range []pdf.Name{"CropBox", "MediaBox"} {
		box, err := pdf.GetRectangle(r, dict[key])
		if err != nil {
			return nil, err
		}
		if box != nil && box.URx > box.LLx && box.URy > box.LLy {
			return box, nil
		}
	}
	return nil, errNoBox
}

func pageRotation(r pdf.Getter, dict pdf.Dict) (int, error) {
	obj, ok := dict["Rotate"]
	if !ok {
		return 0, nil
	}
	rot, err := pdf.GetInt(r, obj)
	if err != nil {
		return 0, err
	}
	deg := int(rot) % 360
	if deg < 0 {
		deg += 360
	}
	return deg - deg%90, nil
}

// Page is one page of a Document.
type Page struct {
	doc    *Document
	index  int
	dict   pdf.Dict
	box    pdf.Rectangle
	rotate int
}

// NaturalSize implements [decoder.Page].  The size accounts for the page
// rotation.
func (p *Page) NaturalSize(scale float64) geometry.Size {
	w := p.box.URx - p.box.LLx
	h := p.box.URy - p.box.LLy
	if p.rotate == 90 || p.rotate == 270 {
		w, h = h, w
	}
	return geometry.NewSize(w*scale, h*scale)
}

// deviceMatrix maps PDF user space to pixels of a canvas at the given
// scale, with the origin at the top-left of the rotated page.
func (p *Page) deviceMatrix(s float64) graphics.Matrix {
	b := p.box
	switch p.rotate {
	case 90:
		return graphics.Matrix{0, s, s, 0, -b.LLy * s, -b.LLx * s}
	case 180:
		return graphics.Matrix{-s, 0, 0, s, b.URx * s, -b.LLy * s}
	case 270:
		return graphics.Matrix{0, -s, -s, 0, b.URy * s, b.URx * s}
	default:
		return graphics.Matrix{s, 0, 0, -s, -b.LLx * s, b.URy * s}
	}
}

// Render implements [decoder.Page].  Malformed content is logged and the
// part drawn before the error is kept.
func (p *Page) Render(ctx context.Context, dc *gg.Context, scale float64) error {
	if ctx.Err() != nil {
		return decoder.ErrRenderAborted
	}
	dc.ClearWithColor(gg.White)

	d := p.doc
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errClosed
	}

	rd := reader.New(d.r, loader.NewFontLoader())
	pt := newPainter(ctx, dc, rd)
	rd.EveryOp = pt.op
	err := rd.ParsePage(p.dict, p.deviceMatrix(scale))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, decoder.ErrRenderAborted) || ctx.Err() != nil:
		return decoder.ErrRenderAborted
	default:
		logging.For("pdfdoc").Warn("page content damaged",
			"source", d.name, "page", p.index, "ops", pt.ops, "err", err)
		return nil
	}
}

// Release implements [decoder.Page].
func (p *Page) Release() {
	p.dict = nil
}
