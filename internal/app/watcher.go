package app

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DocumentWatcher watches an open document for changes and triggers a
// callback when the file is rewritten.
type DocumentWatcher struct {
	path          string
	checkInterval time.Duration

	mu       sync.Mutex
	baseline time.Time
	stopCh   chan struct{}
	onChange func(path string) // Called from the watcher goroutine
}

// NewDocumentWatcher creates a watcher for path.  The current
// modification time is the baseline.
func NewDocumentWatcher(path string, checkInterval time.Duration) (*DocumentWatcher, error) {
	// Editors often replace a file through a symlink; watch the target.
	if real, err := filepath.EvalSymlinks(path); err == nil {
		path = real
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &DocumentWatcher{
		path:          path,
		checkInterval: checkInterval,
		baseline:      info.ModTime(),
	}, nil
}

// OnChange sets the callback to invoke when the document changes.  The
// callback is called from a background goroutine.
func (w *DocumentWatcher) OnChange(callback func(path string)) {
	w.mu.Lock()
	w.onChange = callback
	w.mu.Unlock()
}

// Start begins watching in a background goroutine.
func (w *DocumentWatcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopCh != nil {
		return
	}
	w.stopCh = make(chan struct{})
	go w.watchLoop(w.stopCh)
}

// Stop stops the watcher goroutine.
func (w *DocumentWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
}

// Path returns the watched file.
func (w *DocumentWatcher) Path() string { return w.path }

// Baseline returns the modification time changes are compared with.
func (w *DocumentWatcher) Baseline() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.baseline
}

func (w *DocumentWatcher) watchLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !w.checkForUpdate() {
				continue
			}
			w.mu.Lock()
			fn := w.onChange
			w.mu.Unlock()
			if fn != nil {
				fn(w.path)
			}
		}
	}
}

// checkForUpdate reports whether the file changed since the baseline and
// moves the baseline forward if so.  A missing file is not a change; it
// is usually mid-rewrite.
func (w *DocumentWatcher) checkForUpdate() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !info.ModTime().After(w.baseline) {
		return false
	}
	w.baseline = info.ModTime()
	return true
}
