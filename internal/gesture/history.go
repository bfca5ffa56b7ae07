package gesture

import (
	"time"

	"mobile-pdf/pkg/geometry"
)

// historySize is the number of move samples kept for velocity estimation.
const historySize = 5

type sample struct {
	P geometry.Point2D
	T time.Time
}

// history is a fixed-size ring of the most recent move samples.
type history struct {
	buf   [historySize]sample
	start int
	n     int
}

func (h *history) Push(s sample) {
	if h.n < historySize {
		h.buf[(h.start+h.n)%historySize] = s
		h.n++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % historySize
}

func (h *history) Len() int { return h.n }

func (h *history) Oldest() sample { return h.buf[h.start] }

func (h *history) Newest() sample { return h.buf[(h.start+h.n-1)%historySize] }

func (h *history) Reset() { *h = history{} }
