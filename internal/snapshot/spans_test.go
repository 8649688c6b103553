package snapshot

import (
	"strings"
	"testing"

	gojson "github.com/goccy/go-json"

	"github.com/snaptrace/snaptrace/internal/bytestream"
	"github.com/snaptrace/snaptrace/internal/trace"
)

type panicMessage struct{}

func (panicMessage) Text() string                   { panic("plugin blew up") }
func (panicMessage) Detail() map[string]interface{} { return nil }

type panicSupplier struct{}

func (panicSupplier) Get() trace.Message { return panicMessage{} }

func span(index int, startTick, endTick int64, ms trace.MessageSupplier) *trace.Span {
	s := &trace.Span{
		Offset:          startTick,
		Index:           index,
		ParentIndex:     index - 1,
		NestingLevel:    index,
		StartTick:       startTick,
		MessageSupplier: ms,
	}
	if endTick != 0 {
		s.End(endTick)
	}
	return s
}

func decodeSpans(t *testing.T, s bytestream.Stream) []map[string]interface{} {
	t.Helper()
	b, err := bytestream.ReadAll(s)
	if err != nil {
		t.Fatalf("we should be able to drain the stream: %v", err)
	}
	var spans []map[string]interface{}
	if err := gojson.Unmarshal(b, &spans); err != nil {
		t.Fatalf("concatenated chunks should parse as JSON: %v\n%s", err, b)
	}
	return spans
}

func TestSpanStreamNormalizesToCaptureTick(t *testing.T) {
	spans := []*trace.Span{
		span(0, 0, 100, trace.MessageOf("root", nil)),
		span(1, 50, 0, trace.MessageOf("still running", nil)),
	}
	got := decodeSpans(t, newSpanStream(spans, 120))
	if len(got) != 2 {
		t.Fatalf("got %d spans, want 2", len(got))
	}
	if d := got[0]["duration"].(float64); d != 100 {
		t.Fatalf("span0 duration: got %v, want 100", d)
	}
	if _, active := got[0]["active"]; active {
		t.Fatal("span0 is completed, active flag should be absent")
	}
	if d := got[1]["duration"].(float64); d != 70 {
		t.Fatalf("span1 duration: got %v, want 70", d)
	}
	if active := got[1]["active"].(bool); !active {
		t.Fatal("span1 should be active at the capture tick")
	}
}

func TestSpanStreamSkipsSpansStartedAfterCapture(t *testing.T) {
	spans := []*trace.Span{
		span(0, 0, 100, trace.MessageOf("root", nil)),
		span(1, 130, 0, trace.MessageOf("not yet begun", nil)),
	}
	got := decodeSpans(t, newSpanStream(spans, 120))
	if len(got) != 1 {
		t.Fatalf("got %d spans, want 1", len(got))
	}
	if idx := got[0]["index"].(float64); idx != 0 {
		t.Fatalf("got span index %v, want 0", idx)
	}
}

func TestSpanStreamEmpty(t *testing.T) {
	got := decodeSpans(t, newSpanStream(nil, 120))
	if len(got) != 0 {
		t.Fatalf("got %d spans, want 0", len(got))
	}
}

func TestSpanStreamIsolatesMessageFailures(t *testing.T) {
	spans := []*trace.Span{
		span(0, 0, 10, panicSupplier{}),
		span(1, 0, 10, trace.MessageOf("healthy", nil)),
	}
	got := decodeSpans(t, newSpanStream(spans, 120))
	if len(got) != 2 {
		t.Fatalf("got %d spans, want 2", len(got))
	}
	text := got[0]["message"].(map[string]interface{})["text"].(string)
	if !strings.HasPrefix(text, "an error occurred calling Text() on") {
		t.Fatalf("got %q, want diagnostic placeholder", text)
	}
	text = got[1]["message"].(map[string]interface{})["text"].(string)
	if text != "healthy" {
		t.Fatalf("serialization should continue past the failed span, got %q", text)
	}
}

func TestSpanStreamFields(t *testing.T) {
	s := span(3, 10, 40, trace.MessageOf("query", map[string]interface{}{"rows": 12}))
	s.SetErrorMessage(&trace.ErrorMessage{
		Text:   "deadline exceeded",
		Detail: map[string]interface{}{"timeout_ms": 25},
		Exception: &trace.CapturedException{
			Display:    "context deadline exceeded",
			StackTrace: []string{"db.Query(db.go:10)"},
		},
	})
	s.SetStackTrace([]string{
		"main.handle(server.go:12)",
		"main.handle$trace_metric$(server.go:12)",
	})

	got := decodeSpans(t, newSpanStream([]*trace.Span{s}, 120))[0]
	if got["offset"].(float64) != 10 ||
		got["index"].(float64) != 3 ||
		got["parentIndex"].(float64) != 2 ||
		got["nestingLevel"].(float64) != 3 {
		t.Fatalf("identity fields mismatch: %v", got)
	}
	message := got["message"].(map[string]interface{})
	if message["detail"].(map[string]interface{})["rows"].(float64) != 12 {
		t.Fatalf("message detail mismatch: %v", message)
	}
	errObj := got["error"].(map[string]interface{})
	if errObj["text"].(string) != "deadline exceeded" {
		t.Fatalf("error text mismatch: %v", errObj)
	}
	exception := errObj["exception"].(map[string]interface{})
	if exception["display"].(string) != "context deadline exceeded" {
		t.Fatalf("exception mismatch: %v", exception)
	}
	frames := got["stackTrace"].([]interface{})
	if len(frames) != 1 || frames[0].(string) != "main.handle(server.go:12)" {
		t.Fatalf("synthetic frames should be stripped, got %v", frames)
	}
}

func TestSpanStreamChunking(t *testing.T) {
	detail := map[string]interface{}{"payload": strings.Repeat("x", 64)}
	var spans []*trace.Span
	for i := 0; i < 1000; i++ {
		spans = append(spans, span(i, 0, 10, trace.MessageOf("busy operation doing work", detail)))
	}

	s := newSpanStream(spans, 120)
	var chunks [][]byte
	for s.HasNext() {
		chunk, err := s.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		chunks = append(chunks, chunk)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	var total []byte
	for i, chunk := range chunks {
		if i < len(chunks)-1 && len(chunk) < targetChunkSize {
			t.Fatalf("chunk %d under the flush threshold: %d bytes", i, len(chunk))
		}
		total = append(total, chunk...)
	}
	var decoded []map[string]interface{}
	if err := gojson.Unmarshal(total, &decoded); err != nil {
		t.Fatalf("concatenated chunks should parse as JSON: %v", err)
	}
	if len(decoded) != 1000 {
		t.Fatalf("got %d spans, want 1000", len(decoded))
	}
}
