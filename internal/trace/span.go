package trace

import "sync/atomic"

// Span is one timed operation within a trace. Identity fields are fixed at
// creation; the end tick, error message and captured stack trace are written
// by the owning goroutine and read through atomics by a concurrent capture.
// A span with end tick 0, or with an end tick after the capture tick, is
// still active at capture time.
type Span struct {
	Offset       int64
	Index        int
	ParentIndex  int
	NestingLevel int
	StartTick    int64

	MessageSupplier MessageSupplier

	endTick      atomic.Int64
	errorMessage atomic.Pointer[ErrorMessage]
	stackTrace   atomic.Pointer[[]string]
}

func (s *Span) EndTick() int64 {
	return s.endTick.Load()
}

func (s *Span) End(endTick int64) {
	s.endTick.Store(endTick)
}

func (s *Span) ErrorMessage() *ErrorMessage {
	return s.errorMessage.Load()
}

func (s *Span) SetErrorMessage(e *ErrorMessage) {
	s.errorMessage.Store(e)
}

// StackTrace returns the raw captured stack frames, or nil.
func (s *Span) StackTrace() []string {
	frames := s.stackTrace.Load()
	if frames == nil {
		return nil
	}
	return *frames
}

func (s *Span) SetStackTrace(frames []string) {
	s.stackTrace.Store(&frames)
}
