package loader

import "errors"

// Decode failures reported to event handlers and logs. Callers never receive
// these; a failed decode is delivered as a nil bitmap.
var (
	ErrNoBitmap    = errors.New("decode produced no bitmap")
	ErrDecodePanic = errors.New("decode panicked")
)
