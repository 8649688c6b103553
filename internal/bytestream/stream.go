package bytestream

import (
	"io"

	"github.com/snaptrace/snaptrace/internal/errorutil"
)

type (
	// Stream is a pull-based, finite, forward-only sequence of byte chunks.
	// HasNext is side-effect free and may be called repeatedly. Next must not
	// be called once HasNext reports false. A Stream is single-pass and not
	// restartable.
	Stream interface {
		HasNext() bool
		Next() ([]byte, error)
	}

	bytesStream struct {
		chunk []byte
		done  bool
	}

	concatStream struct {
		streams []Stream
	}
)

// Bytes returns a stream yielding b as a single chunk.
func Bytes(b []byte) Stream {
	return &bytesStream{chunk: b}
}

func (s *bytesStream) HasNext() bool {
	return !s.done
}

func (s *bytesStream) Next() ([]byte, error) {
	if s.done {
		return nil, errorutil.ErrExhaustedStream
	}
	s.done = true
	return s.chunk, nil
}

// Concat concatenates streams in order, advancing to the next child only once
// the current one is exhausted. It never calls Next on an exhausted child.
func Concat(streams ...Stream) Stream {
	return &concatStream{streams: streams}
}

func (s *concatStream) HasNext() bool {
	for len(s.streams) > 0 && !s.streams[0].HasNext() {
		s.streams = s.streams[1:]
	}
	return len(s.streams) > 0
}

func (s *concatStream) Next() ([]byte, error) {
	if !s.HasNext() {
		return nil, errorutil.ErrExhaustedStream
	}
	return s.streams[0].Next()
}

// Copy drains s into w and returns the number of bytes written.
func Copy(w io.Writer, s Stream) (int64, error) {
	var written int64
	for s.HasNext() {
		chunk, err := s.Next()
		if err != nil {
			return written, err
		}
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// ReadAll drains s into a single byte slice.
func ReadAll(s Stream) ([]byte, error) {
	var b []byte
	for s.HasNext() {
		chunk, err := s.Next()
		if err != nil {
			return nil, err
		}
		b = append(b, chunk...)
	}
	return b, nil
}
