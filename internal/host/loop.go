package host

import (
	"context"
	"sync"
	"time"
)

// DefaultFrameInterval paces frames at roughly 60Hz.
const DefaultFrameInterval = time.Second / 60

// Loop is a single-goroutine executor.  Posted tasks and frame callbacks
// all run on the goroutine that calls Run (or, in tests, on the goroutine
// that calls RunPending and Tick), so state touched only from them needs
// no locking.
//
// Frame callbacks requested while a frame is running are deferred to the
// next frame, and run in the order they were scheduled.
type Loop struct {
	mu     sync.Mutex
	tasks  []func()
	notify chan struct{}

	nextID FrameID
	order  []FrameID
	frames map[FrameID]func()
}

// NewLoop creates an idle loop.
func NewLoop() *Loop {
	return &Loop{
		notify: make(chan struct{}, 1),
		frames: make(map[FrameID]func()),
	}
}

// Post queues fn to run on the loop goroutine.  It is safe to call from
// any goroutine and never blocks.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// ScheduleFrame queues fn for the next frame.
func (l *Loop) ScheduleFrame(fn func()) FrameID {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := l.nextID
	l.order = append(l.order, id)
	l.frames[id] = fn
	return id
}

// CancelFrame removes a scheduled frame callback.  Cancelling an unknown
// or already executed callback is a no-op.
func (l *Loop) CancelFrame(id FrameID) {
	l.mu.Lock()
	delete(l.frames, id)
	l.mu.Unlock()
}

// PendingFrames returns the number of frame callbacks waiting to run.
func (l *Loop) PendingFrames() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.frames)
}

// Tick runs one frame: every callback scheduled before the call and not
// cancelled since.
func (l *Loop) Tick() {
	l.mu.Lock()
	batch := l.order
	l.order = nil
	l.mu.Unlock()

	for _, id := range batch {
		l.mu.Lock()
		fn, ok := l.frames[id]
		delete(l.frames, id)
		l.mu.Unlock()
		if ok {
			fn()
		}
	}
}

// RunPending runs posted tasks until the queue is empty and reports how
// many ran.
func (l *Loop) RunPending() int {
	n := 0
	for {
		l.mu.Lock()
		batch := l.tasks
		l.tasks = nil
		l.mu.Unlock()
		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			fn()
		}
		n += len(batch)
	}
}

// RunOne waits up to timeout for at least one posted task, then runs all
// pending tasks.  It reports whether anything ran.
func (l *Loop) RunOne(timeout time.Duration) bool {
	if l.RunPending() > 0 {
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-l.notify:
			if l.RunPending() > 0 {
				return true
			}
		case <-timer.C:
			return l.RunPending() > 0
		}
	}
}

// Run executes tasks and frames until ctx is cancelled.
func (l *Loop) Run(ctx context.Context, frameInterval time.Duration) error {
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.notify:
			l.RunPending()
		case <-ticker.C:
			l.RunPending()
			l.Tick()
		}
	}
}

// Call runs fn on the loop goroutine and waits for it to finish.  It must
// not be called from the loop goroutine itself.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
