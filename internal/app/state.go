// Package app provides application state, events and document watching.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"mobile-pdf/internal/decoder"
	"mobile-pdf/internal/render"
	"mobile-pdf/internal/transform"
)

// State holds the application state: the open document and event
// listeners.
type State struct {
	mu sync.RWMutex

	DocumentPath string
	PageCount    int

	listeners map[EventType][]EventListener
}

// EventType identifies different application events.
type EventType int

const (
	EventDocumentLoaded EventType = iota
	EventLoadFailed
	EventDocumentClosed
	EventPageRendered
	EventTransformChanged
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// NewState creates a new application state.
func NewState() *State {
	return &State{
		listeners: make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Path returns the path of the open document, or "".
func (s *State) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.DocumentPath
}

// Pages returns the page count of the open document.
func (s *State) Pages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.PageCount
}

// Loader loads documents into a viewer.
type Loader interface {
	Load(ctx context.Context, src decoder.Source) <-chan error
}

// OpenDocument reads path and loads it into v, waiting for the outcome.
// It must not be called on the viewer's loop goroutine.
//
// On success EventDocumentLoaded is emitted with the path; on failure
// EventLoadFailed is emitted with the error.  A load replaced by a newer
// one returns render.ErrSuperseded without an event.
func (s *State) OpenDocument(ctx context.Context, v Loader, path string) error {
	src, err := decoder.FromFile(path)
	if err != nil {
		err = fmt.Errorf("open document: %w", err)
		s.Emit(EventLoadFailed, err)
		return err
	}

	select {
	case err = <-v.Load(ctx, src):
	case <-ctx.Done():
		return ctx.Err()
	}
	switch {
	case errors.Is(err, render.ErrSuperseded):
		return err
	case err != nil:
		s.Emit(EventLoadFailed, err)
		return err
	}

	s.mu.Lock()
	s.DocumentPath = path
	s.mu.Unlock()
	s.Emit(EventDocumentLoaded, path)
	return nil
}

// CloseDocument forgets the open document.
func (s *State) CloseDocument() {
	s.mu.Lock()
	path := s.DocumentPath
	s.DocumentPath = ""
	s.PageCount = 0
	s.mu.Unlock()
	if path != "" {
		s.Emit(EventDocumentClosed, path)
	}
}

// Hooks returns render hooks that keep the page count current and emit
// EventPageRendered with the 1-based page index.  They run on the loop
// goroutine.
func (s *State) Hooks() render.Hooks {
	return render.Hooks{
		BeginInsertPages: func(total int) {
			s.mu.Lock()
			s.PageCount = total
			s.mu.Unlock()
		},
		EndRendering: func(e *render.PageEntry) {
			s.Emit(EventPageRendered, e.Index)
		},
	}
}

// TransformChanged emits EventTransformChanged.  It has the signature of a
// viewer transform listener.
func (s *State) TransformChanged(st transform.State) {
	s.Emit(EventTransformChanged, st)
}
