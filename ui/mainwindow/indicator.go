package mainwindow

import (
	"fmt"
	"sync"
)

// pageIndicator remembers the last page label so transform writes that
// do not change the page leave the widget alone.
type pageIndicator struct {
	mu   sync.Mutex
	last string
	set  bool
}

// update returns the label for page of n and whether it differs from the
// previous one.
func (p *pageIndicator) update(page, n int) (string, bool) {
	text := ""
	if n > 0 {
		text = fmt.Sprintf("Page %d / %d", page, n)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.set && text == p.last {
		return text, false
	}
	p.last, p.set = text, true
	return text, true
}
