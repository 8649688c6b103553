package snapshot

import (
	"bytes"
	"strconv"

	"github.com/snaptrace/snaptrace/internal/bytestream"
	"github.com/snaptrace/snaptrace/internal/jsonutil"
)

// ToStream composes the final snapshot envelope. Pre-rendered scalar text is
// buffered and flushed as its own chunk right before each streamed section
// starts, so memory use never grows with span count or tree size. Optional
// fields whose backing value is absent are omitted entirely. The active flag
// indicates the caller targets a still-running trace.
func ToStream(s *Snapshot, active bool) bytestream.Stream {
	var streams []bytestream.Stream
	var buf bytes.Buffer
	flush := func() {
		chunk := make([]byte, buf.Len())
		copy(chunk, buf.Bytes())
		streams = append(streams, bytestream.Bytes(chunk))
		buf.Reset()
	}

	buf.WriteString(`{"id":`)
	jsonutil.AppendString(&buf, s.ID)
	buf.WriteString(`,"start":`)
	buf.WriteString(strconv.FormatInt(s.Start, 10))
	buf.WriteString(`,"duration":`)
	buf.WriteString(strconv.FormatInt(s.Duration, 10))
	buf.WriteString(`,"active":`)
	buf.WriteString(strconv.FormatBool(active))
	buf.WriteString(`,"stuck":`)
	buf.WriteString(strconv.FormatBool(s.Stuck))
	buf.WriteString(`,"completed":`)
	buf.WriteString(strconv.FormatBool(s.Completed))
	buf.WriteString(`,"background":`)
	buf.WriteString(strconv.FormatBool(s.Background))
	buf.WriteString(`,"description":`)
	jsonutil.AppendString(&buf, s.Description)
	if s.Attributes != "" {
		buf.WriteString(`,"attributes":`)
		buf.WriteString(s.Attributes)
	}
	if s.UserID != "" {
		buf.WriteString(`,"userId":`)
		jsonutil.AppendString(&buf, s.UserID)
	}
	if s.ErrorText != "" {
		buf.WriteString(`,"error":{"text":`)
		jsonutil.AppendString(&buf, s.ErrorText)
		if s.ErrorDetail != "" {
			buf.WriteString(`,"detail":`)
			buf.WriteString(s.ErrorDetail)
		}
		if s.Exception != "" {
			buf.WriteString(`,"exception":`)
			buf.WriteString(s.Exception)
		}
		buf.WriteByte('}')
	}
	if s.Metrics != "" {
		buf.WriteString(`,"metrics":`)
		buf.WriteString(s.Metrics)
	}
	if s.Spans != nil {
		buf.WriteString(`,"spans":`)
		flush()
		streams = append(streams, s.Spans)
	}
	if s.CoarseMergedStackTree != nil {
		buf.WriteString(`,"coarseMergedStackTree":`)
		flush()
		streams = append(streams, s.CoarseMergedStackTree)
	}
	if s.FineMergedStackTree != nil {
		buf.WriteString(`,"fineMergedStackTree":`)
		flush()
		streams = append(streams, s.FineMergedStackTree)
	}
	buf.WriteByte('}')
	flush()
	return bytestream.Concat(streams...)
}
