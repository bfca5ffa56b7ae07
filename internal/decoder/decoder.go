// Package decoder defines the document decoding contract used by the page
// render manager.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mobile-pdf/pkg/geometry"

	"github.com/gogpu/gg"
)

// ErrRenderAborted is returned by Page.Render when its context is
// cancelled before the page is complete.
var ErrRenderAborted = errors.New("render aborted")

// Source is an in-memory document.
type Source struct {
	Name string
	Data []byte
}

// FromFile reads a document from disk.
func FromFile(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("read document: %w", err)
	}
	return Source{Name: filepath.Base(path), Data: data}, nil
}

// Decoder opens documents.
type Decoder interface {
	Open(ctx context.Context, src Source) (Document, error)
}

// Document is an opened document.  Implementations are safe for
// concurrent use.
type Document interface {
	PageCount() int

	// Page loads a page by 1-based index.
	Page(ctx context.Context, index int) (Page, error)

	Close() error
}

// Page is one loaded page.
type Page interface {
	// NaturalSize returns the page size in pixels at the given scale,
	// where scale 1 maps one PDF unit to one pixel.
	NaturalSize(scale float64) geometry.Size

	// Render draws the page into dc at the given scale.  It returns
	// ErrRenderAborted if ctx is cancelled first.
	Render(ctx context.Context, dc *gg.Context, scale float64) error

	Release()
}

// DecodeError reports a document that could not be opened.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("decode document: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RenderError reports a page that failed to render.
type RenderError struct {
	Page int
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render page %d: %v", e.Page, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// IsAborted reports whether err is a cancellation rather than a failure.
func IsAborted(err error) bool {
	return errors.Is(err, ErrRenderAborted) || errors.Is(err, context.Canceled)
}
