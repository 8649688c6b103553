package errorutil

import "errors"

// ErrExhaustedStream indicates Next was called on a byte stream that already
// reported completion.
var ErrExhaustedStream = errors.New("byte stream exhausted")

// ErrTraceNotFound represents situations in which no trace is registered under
// the requested id.
var ErrTraceNotFound = errors.New("trace not found")
