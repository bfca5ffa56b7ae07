package prefs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"mobile-pdf/internal/viewer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", prefsFile)
	p := LoadFrom(path)
	p.SetString(KeyLastDocument, "/tmp/a.pdf")
	p.SetFloat(KeyOversampling, 2)
	p.SetBool(KeyWatchDocument, true)
	require.NoError(t, p.Save())

	q := LoadFrom(path)
	assert.Equal(t, "/tmp/a.pdf", q.String(KeyLastDocument))
	assert.Equal(t, 2.0, q.Float(KeyOversampling))
	assert.True(t, q.Bool(KeyWatchDocument, false))
	assert.Equal(t, "", q.String("missing"))
	assert.Equal(t, 7.0, q.FloatWithFallback("missing", 7))
}

func TestCorruptFileGivesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), prefsFile)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	p := LoadFrom(path)
	assert.Equal(t, viewer.DefaultConfig(), p.ViewerConfig())
}

func TestViewerConfig(t *testing.T) {
	p := LoadFrom(filepath.Join(t.TempDir(), prefsFile))
	p.SetFloat(KeyOversampling, 2)
	p.SetFloat(KeyMaxScale, 6)
	p.SetFloat(KeyDoubleTapMillis, 250)
	p.SetBool(KeyPinchClamp, true)

	cfg := p.ViewerConfig()
	assert.Equal(t, 2.0, cfg.Render.Oversampling)
	assert.Equal(t, 6.0, cfg.Boundary.MaxScale)
	assert.Equal(t, 250*time.Millisecond, cfg.DoubleTapTimeout)
	assert.True(t, cfg.PinchClamp)
	assert.Equal(t, viewer.DefaultConfig().Boundary.Left, cfg.Boundary.Left)
}

func TestInvalidBoundaryFallsBack(t *testing.T) {
	p := LoadFrom(filepath.Join(t.TempDir(), prefsFile))
	p.SetFloat(KeyMinScale, 5)
	p.SetFloat(KeyMaxScale, 2)
	assert.Equal(t, viewer.DefaultConfig().Boundary, p.ViewerConfig().Boundary)
}
