package transform

import (
	"math"
	"testing"

	"mobile-pdf/internal/boundary"
	"mobile-pdf/internal/host"
	"mobile-pdf/internal/pagestack"
	"mobile-pdf/pkg/geometry"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"seehuhn.de/go/geom/matrix"
)

func newController(t *testing.T, pages int) (*Controller, *pagestack.Stack, *host.Loop) {
	t.Helper()
	loop := host.NewLoop()
	s := pagestack.New(loop, geometry.NewSize(308, 600))
	for i := 1; i <= pages; i++ {
		s.AddPlaceholder(i)
	}
	c, err := New(s, loop, s.Content(), s.Viewport(), boundary.DefaultConfig())
	require.NoError(t, err)
	loop.Tick()
	return c, s, loop
}

func TestNewRejectsBadConfig(t *testing.T) {
	loop := host.NewLoop()
	s := pagestack.New(loop, geometry.NewSize(100, 100))
	cfg := boundary.DefaultConfig()
	cfg.MinScale = 0
	_, err := New(s, loop, s.Content(), s.Viewport(), cfg)
	assert.Error(t, err)
}

func TestApplyCoalescesWithinFrame(t *testing.T) {
	c, s, loop := newController(t, 3)
	var writes []State
	c.OnChange(func(st State) { writes = append(writes, st) })

	c.Apply(Translate(10, 20))
	c.Apply(Zoom(-5, -6, 2))
	c.Apply(Update{TranslateY: -7, Set: FieldTranslateY})
	assert.Equal(t, 1, loop.PendingFrames())
	assert.Equal(t, matrix.Identity, s.Transform(), "nothing is written before the frame")

	loop.Tick()
	want := State{TranslateX: -5, TranslateY: -7, Scale: 2}
	require.Len(t, writes, 1)
	assert.Equal(t, want, writes[0])
	assert.Equal(t, want.Matrix(), s.Transform())

	loop.Tick()
	assert.Len(t, writes, 1)
}

func TestApplyClampsScale(t *testing.T) {
	c, _, _ := newController(t, 1)
	for _, s := range []float64{-1, 0, 0.1, 0.5, 1, 3.9, 4, 10, math.Inf(1)} {
		c.Apply(Update{Scale: s, Set: FieldScale})
		got := c.Scale()
		assert.GreaterOrEqual(t, got, 0.5, "scale %v", s)
		assert.LessOrEqual(t, got, 4.0, "scale %v", s)
	}

	c.Apply(Update{Scale: 10, Set: FieldScale})
	assert.Equal(t, 4.0, c.Scale())
	c.Apply(Update{Scale: math.NaN(), Set: FieldScale})
	assert.Equal(t, 4.0, c.Scale())
}

func TestMaskedFieldsOnly(t *testing.T) {
	c, _, _ := newController(t, 1)
	c.Apply(Zoom(1, 2, 3))
	c.Apply(Update{TranslateX: 9, TranslateY: 99, Scale: 99, Set: FieldTranslateX})
	assert.Equal(t, State{TranslateX: 9, TranslateY: 2, Scale: 3}, c.State())
}

func TestReset(t *testing.T) {
	c, s, loop := newController(t, 2)
	c.Apply(Zoom(30, 40, 2))
	loop.Tick()
	c.Reset()
	loop.Tick()
	assert.Equal(t, Identity(), c.State())
	assert.Equal(t, matrix.Identity, s.Transform())
}

func TestConstrainBoundary(t *testing.T) {
	c, _, loop := newController(t, 3)

	x, y := c.ConstrainBoundary(40, 30)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 0.0, y)

	x, y = c.ConstrainBoundary(0, -5000)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 600.0-1800-50, y)

	c.Apply(Update{Scale: 2, Set: FieldScale})
	loop.Tick()
	x, y = c.ConstrainBoundary(-1000, 100)
	opt := cmpopts.EquateApprox(0, 1e-9)
	if diff := cmp.Diff([]float64{308 - 600 - 50, 50}, []float64{x, y}, opt); diff != "" {
		t.Errorf("constrained translation mismatch (-want +got):\n%s", diff)
	}
}

func TestModeAndClose(t *testing.T) {
	c, s, loop := newController(t, 1)
	assert.Equal(t, Idle, c.Mode())
	c.SetMode(Pinching)
	assert.Equal(t, "pinching", c.Mode().String())

	c.Apply(Translate(0, 10))
	c.Close()
	loop.Tick()
	assert.Equal(t, matrix.Identity, s.Transform())
	assert.Equal(t, 0, loop.PendingFrames())
}
