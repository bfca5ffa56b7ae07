package mainwindow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageIndicatorSkipsUnchangedPage(t *testing.T) {
	var p pageIndicator

	text, changed := p.update(1, 4)
	assert.True(t, changed)
	assert.Equal(t, "Page 1 / 4", text)

	for i := 0; i < 10; i++ {
		_, changed = p.update(1, 4)
		assert.False(t, changed)
	}

	text, changed = p.update(2, 4)
	assert.True(t, changed)
	assert.Equal(t, "Page 2 / 4", text)

	text, changed = p.update(0, 0)
	assert.True(t, changed)
	assert.Empty(t, text)

	_, changed = p.update(3, 0)
	assert.False(t, changed, "no document shows an empty label")
}

func TestPageIndicatorFirstEmptyUpdateApplies(t *testing.T) {
	var p pageIndicator
	text, changed := p.update(0, 0)
	assert.True(t, changed)
	assert.Empty(t, text)
}
