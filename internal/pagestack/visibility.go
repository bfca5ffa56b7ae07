package pagestack

import (
	"mobile-pdf/internal/host"
	"mobile-pdf/pkg/geometry"
)

type targetState struct {
	reported     bool
	intersecting bool
}

type observer struct {
	stack   *Stack
	opts    host.VisibilityOptions
	fn      func([]host.VisibilityEntry)
	targets map[host.Element]*targetState
	order   []host.Element
	closed  bool
}

// ObserveVisibility implements [host.Surface].  Observers are evaluated on
// the frame after any layout or transform change.
func (s *Stack) ObserveVisibility(opts host.VisibilityOptions, fn func([]host.VisibilityEntry)) host.VisibilityObserver {
	o := &observer{
		stack:   s,
		opts:    opts,
		fn:      fn,
		targets: make(map[host.Element]*targetState),
	}
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
	return o
}

func (o *observer) Observe(el host.Element) {
	s := o.stack
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.closed {
		return
	}
	if _, ok := o.targets[el]; ok {
		return
	}
	o.targets[el] = &targetState{}
	o.order = append(o.order, el)
	s.scheduleCheckLocked()
}

func (o *observer) Unobserve(el host.Element) {
	s := o.stack
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := o.targets[el]; !ok {
		return
	}
	delete(o.targets, el)
	for i, t := range o.order {
		if t == el {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

func (o *observer) Disconnect() {
	s := o.stack
	s.mu.Lock()
	defer s.mu.Unlock()
	o.closed = true
	o.targets = nil
	o.order = nil
	for i, other := range s.observers {
		if other == o {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			break
		}
	}
}

func (s *Stack) scheduleCheckLocked() {
	if s.checkScheduled || len(s.observers) == 0 || s.frames == nil {
		return
	}
	s.checkScheduled = true
	s.frames.ScheduleFrame(s.checkVisibility)
}

type delivery struct {
	o       *observer
	entries []host.VisibilityEntry
}

func (s *Stack) checkVisibility() {
	s.mu.Lock()
	s.checkScheduled = false
	var out []delivery
	for _, o := range s.observers {
		if entries := o.evaluateLocked(); len(entries) > 0 {
			out = append(out, delivery{o: o, entries: entries})
		}
	}
	s.mu.Unlock()

	for _, d := range out {
		d.o.fn(d.entries)
	}
}

func (o *observer) evaluateLocked() []host.VisibilityEntry {
	s := o.stack
	root := s.measureLocked(o.opts.Root)
	area := root.Expand(root.Width*o.opts.MarginX, root.Height*o.opts.MarginY)

	var entries []host.VisibilityEntry
	for _, el := range o.order {
		st := o.targets[el]
		r := s.measureLocked(el)
		ratio := intersectionRatio(r, area)
		in := ratio > 0 && ratio >= o.opts.Threshold
		if st.reported && st.intersecting == in {
			continue
		}
		st.reported = true
		st.intersecting = in
		entries = append(entries, host.VisibilityEntry{Target: el, Ratio: ratio, Intersecting: in})
	}
	return entries
}

func intersectionRatio(target, area geometry.Rect) float64 {
	if target.Empty() {
		if area.Contains(target.TopLeft()) {
			return 1
		}
		return 0
	}
	return target.Intersect(area).Area() / target.Area()
}
