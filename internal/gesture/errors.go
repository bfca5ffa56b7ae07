package gesture

import "fmt"

// GestureError wraps a panic recovered inside a touch handler.
type GestureError struct {
	Phase string
	Err   error
}

func (e *GestureError) Error() string {
	return fmt.Sprintf("gesture: %s: %v", e.Phase, e.Err)
}

func (e *GestureError) Unwrap() error { return e.Err }

func newGestureError(phase string, v any) *GestureError {
	err, ok := v.(error)
	if !ok {
		err = fmt.Errorf("%v", v)
	}
	return &GestureError{Phase: phase, Err: err}
}
