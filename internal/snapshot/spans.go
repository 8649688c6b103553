package snapshot

import (
	"bytes"

	gojson "github.com/goccy/go-json"

	"github.com/snaptrace/snaptrace/internal/bytestream"
	"github.com/snaptrace/snaptrace/internal/errorutil"
	"github.com/snaptrace/snaptrace/internal/jsonutil"
	"github.com/snaptrace/snaptrace/internal/stacktree"
	"github.com/snaptrace/snaptrace/internal/tick"
	"github.com/snaptrace/snaptrace/internal/trace"
)

type (
	// spanStream streams the span list as one JSON array, one object per
	// span, flushing whenever the buffer crosses targetChunkSize. The array
	// is closed before the final chunk is returned.
	spanStream struct {
		spans       []*trace.Span
		next        int
		captureTick int64
		buf         bytes.Buffer
		wroteSpan   bool
		closed      bool
	}

	spanView struct {
		Offset       int64        `json:"offset"`
		Duration     int64        `json:"duration"`
		Active       bool         `json:"active,omitempty"`
		Index        int          `json:"index"`
		ParentIndex  int          `json:"parentIndex"`
		NestingLevel int          `json:"nestingLevel"`
		Message      *messageView `json:"message,omitempty"`
		Error        *errorView   `json:"error,omitempty"`
		StackTrace   []string     `json:"stackTrace,omitempty"`
	}

	messageView struct {
		Text   string            `json:"text"`
		Detail gojson.RawMessage `json:"detail,omitempty"`
	}

	errorView struct {
		Text      string            `json:"text"`
		Detail    gojson.RawMessage `json:"detail,omitempty"`
		Exception gojson.RawMessage `json:"exception,omitempty"`
	}
)

func newSpanStream(spans []*trace.Span, captureTick int64) bytestream.Stream {
	s := spanStream{spans: spans, captureTick: captureTick}
	s.buf.Grow(2 * targetChunkSize)
	s.buf.WriteByte('[')
	return &s
}

func (s *spanStream) HasNext() bool {
	return !s.closed
}

func (s *spanStream) Next() ([]byte, error) {
	if s.closed {
		return nil, errorutil.ErrExhaustedStream
	}
	for s.buf.Len() < targetChunkSize && s.next < len(s.spans) {
		if err := s.writeSpan(s.spans[s.next]); err != nil {
			return nil, err
		}
		s.next++
	}
	if s.next == len(s.spans) {
		s.buf.WriteByte(']')
		s.closed = true
	}
	chunk := make([]byte, s.buf.Len())
	copy(chunk, s.buf.Bytes())
	s.buf.Reset()
	return chunk, nil
}

func (s *spanStream) writeSpan(span *trace.Span) error {
	if span.StartTick > s.captureTick {
		// this span started after the capture tick
		return nil
	}
	endTick := span.EndTick()
	duration, completed := tick.Normalize(span.StartTick, endTick, s.captureTick)
	view := spanView{
		Offset:       span.Offset,
		Duration:     duration,
		Active:       !completed,
		Index:        span.Index,
		ParentIndex:  span.ParentIndex,
		NestingLevel: span.NestingLevel,
	}
	if span.MessageSupplier != nil {
		m := span.MessageSupplier.Get()
		mv := messageView{Text: messageText(m)}
		if detail := m.Detail(); len(detail) > 0 {
			d, err := jsonutil.MarshalDetail(detail)
			if err != nil {
				return err
			}
			mv.Detail = gojson.RawMessage(d)
		}
		view.Message = &mv
	}
	if errMsg := span.ErrorMessage(); errMsg != nil {
		ev := errorView{Text: errMsg.Text}
		if errMsg.Detail != nil {
			d, err := jsonutil.MarshalDetail(errMsg.Detail)
			if err != nil {
				return err
			}
			ev.Detail = gojson.RawMessage(d)
		}
		if errMsg.Exception != nil {
			e, err := exceptionJSON(errMsg.Exception)
			if err != nil {
				return err
			}
			ev.Exception = gojson.RawMessage(e)
		}
		view.Error = &ev
	}
	if frames := span.StackTrace(); frames != nil {
		view.StackTrace = stacktree.StripSyntheticFrames(frames)
	}
	b, err := gojson.Marshal(view)
	if err != nil {
		return err
	}
	if s.wroteSpan {
		s.buf.WriteByte(',')
	}
	s.buf.Write(b)
	s.wroteSpan = true
	return nil
}
