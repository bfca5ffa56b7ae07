package pagestack

import (
	"testing"

	"mobile-pdf/internal/host"
	"mobile-pdf/pkg/geometry"

	"github.com/gogpu/gg"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"seehuhn.de/go/geom/matrix"
)

func newTestStack(t *testing.T, pages int) (*Stack, *host.Loop, []host.Placeholder) {
	t.Helper()
	loop := host.NewLoop()
	s := New(loop, geometry.NewSize(308, 600))
	var ph []host.Placeholder
	for i := 1; i <= pages; i++ {
		ph = append(ph, s.AddPlaceholder(i))
	}
	return s, loop, ph
}

func TestMeasure(t *testing.T) {
	s, _, ph := newTestStack(t, 3)

	assert.Equal(t, 300.0, s.ContainerWidth())
	assert.Equal(t, geometry.NewRect(0, 0, 308, 600), s.MeasureRect(s.Viewport()))
	assert.Equal(t, geometry.NewRect(4, 0, 300, 1800), s.MeasureRect(s.Content()))
	assert.Equal(t, geometry.NewRect(4, 600, 300, 600), s.MeasureRect(ph[1]))

	ph[0].SetHeight(400)
	s.SetTransform(s.Content(), matrix.Matrix{2, 0, 0, 2, -10, -20})

	want := geometry.NewRect(-6, -20+400*2, 600, 1200)
	if diff := cmp.Diff(want, s.MeasureRect(ph[1])); diff != "" {
		t.Errorf("placeholder rect mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, geometry.NewRect(-6, -20, 600, 3200), s.MeasureRect(s.Content()))
	assert.Equal(t, geometry.Rect{}, s.MeasureRect("unknown"))
}

func TestViewportResizeMovesAutoHeights(t *testing.T) {
	s, _, ph := newTestStack(t, 2)
	ph[0].SetHeight(100)
	s.SetViewportSize(geometry.NewSize(308, 800))

	assert.Equal(t, 100.0, ph[0].(*Placeholder).Height())
	assert.Equal(t, 800.0, ph[1].(*Placeholder).Height())
}

func collect(loop *host.Loop, s *Stack) (*[]host.VisibilityEntry, host.VisibilityObserver) {
	var got []host.VisibilityEntry
	obs := s.ObserveVisibility(host.VisibilityOptions{
		Root:      s.Viewport(),
		MarginY:   1,
		Threshold: 0.1,
	}, func(entries []host.VisibilityEntry) {
		got = append(got, entries...)
	})
	return &got, obs
}

func intersecting(entries []host.VisibilityEntry) map[int]bool {
	m := make(map[int]bool)
	for _, e := range entries {
		m[e.Target.(*Placeholder).Page()] = e.Intersecting
	}
	return m
}

func TestVisibilityInitialAndChanges(t *testing.T) {
	s, loop, ph := newTestStack(t, 3)
	got, obs := collect(loop, s)
	for _, p := range ph {
		obs.Observe(p)
	}

	loop.Tick()
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: false}, intersecting(*got))

	*got = nil
	s.SetTransform(s.Content(), matrix.Matrix{1, 0, 0, 1, 0, -1300})
	loop.Tick()
	assert.Equal(t, map[int]bool{1: false, 3: true}, intersecting(*got))

	*got = nil
	s.SetTransform(s.Content(), matrix.Matrix{1, 0, 0, 1, 0, -1310})
	loop.Tick()
	assert.Empty(t, *got, "no entries without a visibility change")
}

func TestVisibilityThreshold(t *testing.T) {
	s, loop, ph := newTestStack(t, 3)
	got, obs := collect(loop, s)
	obs.Observe(ph[2])
	loop.Tick()
	require.Len(t, *got, 1)
	assert.False(t, (*got)[0].Intersecting)

	// 5% of page 3 inside the observation area.
	*got = nil
	s.SetTransform(s.Content(), matrix.Matrix{1, 0, 0, 1, 0, -30})
	loop.Tick()
	assert.Empty(t, *got)

	// 20% inside.
	s.SetTransform(s.Content(), matrix.Matrix{1, 0, 0, 1, 0, -120})
	loop.Tick()
	require.Len(t, *got, 1)
	assert.True(t, (*got)[0].Intersecting)
	assert.InDelta(t, 0.2, (*got)[0].Ratio, 1e-9)
}

func TestDisconnectStopsDelivery(t *testing.T) {
	s, loop, ph := newTestStack(t, 1)
	got, obs := collect(loop, s)
	obs.Observe(ph[0])
	obs.Disconnect()
	loop.Tick()
	assert.Empty(t, *got)
	assert.Equal(t, 0, loop.PendingFrames())
}

func TestCompositeAndCurrentPage(t *testing.T) {
	s, _, ph := newTestStack(t, 3)
	dc := gg.NewContext(30, 60)
	defer dc.Close()
	ph[1].Attach(dc)
	assert.True(t, ph[1].(*Placeholder).Attached())

	s.SetTransform(s.Content(), matrix.Matrix{1, 0, 0, 1, 0, -700})
	assert.Equal(t, 2, s.CurrentPage())

	var pages []int
	var withImage []int
	s.Composite(func(_ geometry.Size, tiles []Tile) {
		for _, tl := range tiles {
			pages = append(pages, tl.Page)
			if tl.Image != nil {
				withImage = append(withImage, tl.Page)
			}
		}
	})
	assert.Equal(t, []int{2, 3}, pages)
	assert.Equal(t, []int{2}, withImage)

	ph[1].Detach()
	assert.False(t, ph[1].(*Placeholder).Attached())
	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.CurrentPage())
}
