package render

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"mobile-pdf/internal/decoder"
	"mobile-pdf/internal/decoder/decodertest"
	"mobile-pdf/internal/host"
	"mobile-pdf/internal/logging"
	"mobile-pdf/internal/pagestack"
	"mobile-pdf/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"seehuhn.de/go/geom/matrix"
)

type fixture struct {
	loop  *host.Loop
	stack *pagestack.Stack
	dec   *decodertest.Decoder
	m     *Manager
	calls []string
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		loop: host.NewLoop(),
		dec:  decodertest.New(),
	}
	f.stack = pagestack.New(f.loop, geometry.NewSize(308, 600))
	cfg.Hooks = Hooks{
		BeforeRender:     func() { f.calls = append(f.calls, "before") },
		StartLoading:     func() { f.calls = append(f.calls, "start-loading") },
		BeginInsertPages: func(n int) { f.calls = append(f.calls, "begin-insert") },
		CompleteLoading: func(pages []*PageEntry, doc decoder.Document, n int) {
			f.calls = append(f.calls, "complete-loading")
		},
		LoadFailed: func(err error) { f.calls = append(f.calls, "load-failed") },
	}
	f.m = New(f.dec, f.stack, f.stack, f.stack.Viewport(), f.loop, cfg)
	return f
}

// pump runs the loop until cond holds.
func (f *fixture) pump(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the loop")
		}
		f.loop.RunOne(5 * time.Millisecond)
		f.loop.Tick()
	}
}

func (f *fixture) load(t *testing.T, name string) error {
	t.Helper()
	var result error
	finished := false
	f.m.Load(context.Background(), decoder.Source{Name: name}, func(err error) {
		result = err
		finished = true
	})
	f.pump(t, func() bool { return finished })
	return result
}

func (f *fixture) statuses() []Status {
	var out []Status
	for _, e := range f.m.Pages() {
		out = append(out, e.Status())
	}
	return out
}

func (f *fixture) settled() bool {
	for _, e := range f.m.Pages() {
		if e.Status() == Loading {
			return false
		}
	}
	return true
}

func TestLoadBaseScaleAndEviction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VisibilityMargin = 0
	f := newFixture(t, cfg)
	doc := decodertest.Uniform(3, 300, 600)
	f.dec.Add("three.pdf", doc)

	require.NoError(t, f.load(t, "three.pdf"))
	assert.Equal(t, 3.0, f.m.BaseScale())
	assert.Equal(t, []string{"before", "start-loading", "begin-insert", "complete-loading"}, f.calls)
	assert.Equal(t, 3, f.stack.Len())

	f.pump(t, func() bool { return f.m.Pages()[0].Status() == Complete })
	assert.Equal(t, []Status{Complete, Pending, Pending}, f.statuses())

	p1 := f.m.Pages()[0]
	require.NotNil(t, p1.Canvas())
	assert.Equal(t, 900, p1.Canvas().Width())
	assert.Equal(t, 1800, p1.Canvas().Height())
	assert.Equal(t, 600.0, p1.Placeholder.(*pagestack.Placeholder).Height())

	// Page 3 shows 50 of 600 rows, under the visibility threshold.
	f.stack.SetTransform(f.stack.Content(), matrix.Matrix{1, 0, 0, 1, 0, -650})
	f.loop.Tick()
	assert.Equal(t, Pending, p1.Status())
	assert.Nil(t, p1.Canvas())
	assert.False(t, p1.Placeholder.(*pagestack.Placeholder).Attached())

	f.pump(t, f.settled)
	assert.Equal(t, []Status{Pending, Complete, Pending}, f.statuses())
	assert.Empty(t, doc.Aborted(), "nothing was in flight")
	assert.ElementsMatch(t, []int{1, 2}, doc.Renders())
	assert.Equal(t, 0, doc.OpenPages())
}

func TestPlaceholderHeightUsesOversampling(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.dec.Add("a.pdf", decodertest.Uniform(3, 300, 400))
	require.NoError(t, f.load(t, "a.pdf"))

	f.pump(t, func() bool { return f.m.Pages()[0].Status() == Complete })
	ph := f.m.Pages()[0].Placeholder.(*pagestack.Placeholder)
	assert.Equal(t, 400.0, ph.Height())
	assert.Equal(t, 1200, f.m.Pages()[0].Canvas().Height())
}

func TestDefaultMarginPrerendersNextPage(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.dec.Add("a.pdf", decodertest.Uniform(3, 300, 600))
	require.NoError(t, f.load(t, "a.pdf"))

	f.pump(t, func() bool {
		p := f.m.Pages()
		return p[0].Status() == Complete && p[1].Status() == Complete
	})
	assert.Equal(t, Pending, f.m.Pages()[2].Status())
}

func TestExitCancelsInFlightRender(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	doc := decodertest.Uniform(3, 300, 600)
	doc.HoldRenders()
	f.dec.Add("a.pdf", doc)

	var started, ended []int
	f.m.cfg.Hooks.StartRendering = func(e *PageEntry) { started = append(started, e.Index) }
	f.m.cfg.Hooks.EndRendering = func(e *PageEntry) { ended = append(ended, e.Index) }

	require.NoError(t, f.load(t, "a.pdf"))
	f.loop.Tick()
	assert.Equal(t, []Status{Loading, Loading, Pending}, f.statuses())
	assert.Equal(t, []int{1, 2}, started)

	// Both workers must be blocked inside Render before the pages leave.
	f.pump(t, func() bool { return len(doc.Renders()) == 2 })
	f.stack.SetTransform(f.stack.Content(), matrix.Matrix{1, 0, 0, 1, 0, -3000})
	f.loop.Tick()
	assert.Equal(t, []Status{Pending, Pending, Pending}, f.statuses())

	f.pump(t, func() bool { return len(doc.Aborted()) == 2 })
	assert.ElementsMatch(t, []int{1, 2}, doc.Aborted())
	doc.Finish(1)
	doc.Finish(2)
	f.pump(t, func() bool { return doc.OpenPages() == 0 })
	f.loop.RunOne(20 * time.Millisecond)
	assert.Empty(t, ended)
	assert.Equal(t, []Status{Pending, Pending, Pending}, f.statuses())
}

func TestSinglePageIsNeverEvicted(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.dec.Add("one.pdf", decodertest.Uniform(1, 300, 600))
	require.NoError(t, f.load(t, "one.pdf"))
	f.pump(t, func() bool { return f.m.Pages()[0].Status() == Complete })

	f.stack.SetTransform(f.stack.Content(), matrix.Matrix{1, 0, 0, 1, 0, -5000})
	f.loop.Tick()
	p := f.m.Pages()[0]
	assert.Equal(t, Complete, p.Status())
	assert.NotNil(t, p.Canvas())
}

func TestRenderErrorLeavesPagePending(t *testing.T) {
	var buf bytes.Buffer
	logging.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { logging.SetLogger(nil) })

	f := newFixture(t, DefaultConfig())
	doc := decodertest.Uniform(3, 300, 600)
	doc.FailPage(1, errors.New("boom"))
	f.dec.Add("a.pdf", doc)
	require.NoError(t, f.load(t, "a.pdf"))

	f.pump(t, func() bool { return f.m.Pages()[1].Status() == Complete && f.settled() })
	assert.Equal(t, Pending, f.m.Pages()[0].Status())
	assert.Nil(t, f.m.Pages()[0].Canvas())
	assert.Contains(t, buf.String(), "render page 1: boom")
}

func TestDecodeError(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	err := f.load(t, "missing.pdf")

	var de *decoder.DecodeError
	require.ErrorAs(t, err, &de)
	assert.ErrorIs(t, err, decodertest.ErrUnknownSource)
	assert.Equal(t, []string{"before", "start-loading", "load-failed"}, f.calls)
	assert.Empty(t, f.m.Pages())
	assert.Nil(t, f.m.Document())
}

func TestReloadDiscardsStaleWork(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	a := decodertest.Uniform(3, 300, 600)
	a.HoldRenders()
	b := decodertest.Uniform(2, 150, 300)
	f.dec.Add("a.pdf", a)
	f.dec.Add("b.pdf", b)

	require.NoError(t, f.load(t, "a.pdf"))
	f.loop.Tick()
	require.Equal(t, []Status{Loading, Loading, Pending}, f.statuses())

	require.NoError(t, f.load(t, "b.pdf"))
	assert.True(t, a.Closed())
	assert.Equal(t, 6.0, f.m.BaseScale())
	assert.Equal(t, 2, f.stack.Len())

	a.Finish(1)
	a.Finish(2)
	f.pump(t, func() bool { return f.settled() && f.m.Pages()[0].Status() == Complete })
	assert.Equal(t, []Status{Complete, Complete}, f.statuses())
	assert.Equal(t, b, f.m.Document())
}

func TestSupersededLoad(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	slow := decodertest.Uniform(1, 300, 600)
	fast := decodertest.Uniform(1, 300, 600)
	f.dec.Add("slow.pdf", slow)
	f.dec.Add("fast.pdf", fast)
	release := f.dec.Hold("slow.pdf")
	defer release()

	var slowErr error
	slowDone := false
	f.m.Load(context.Background(), decoder.Source{Name: "slow.pdf"}, func(err error) {
		slowErr = err
		slowDone = true
	})
	require.NoError(t, f.load(t, "fast.pdf"))
	f.pump(t, func() bool { return slowDone })

	assert.ErrorIs(t, slowErr, ErrSuperseded)
	assert.Equal(t, fast, f.m.Document())
}

func TestUnload(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	doc := decodertest.Uniform(3, 300, 600)
	f.dec.Add("a.pdf", doc)
	require.NoError(t, f.load(t, "a.pdf"))
	f.pump(t, f.settled)

	f.m.Unload()
	assert.True(t, doc.Closed())
	assert.Empty(t, f.m.Pages())
	assert.Equal(t, 0, f.stack.Len())
	assert.Equal(t, 0.0, f.m.BaseScale())
}

func TestEntryKeysAreUnique(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.dec.Add("a.pdf", decodertest.Uniform(3, 300, 600))
	require.NoError(t, f.load(t, "a.pdf"))
	first := f.m.Pages()
	require.NoError(t, f.load(t, "a.pdf"))

	seen := map[string]bool{}
	for _, e := range append(first, f.m.Pages()...) {
		assert.False(t, seen[e.Key], "duplicate key %s", e.Key)
		seen[e.Key] = true
	}
	assert.Equal(t, "page 2 (pending)", first[1].String())
}
