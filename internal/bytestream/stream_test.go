package bytestream

import (
	"bytes"
	"errors"
	"testing"

	"github.com/snaptrace/snaptrace/internal/errorutil"
)

func TestBytes(t *testing.T) {
	s := Bytes([]byte("chunk"))
	if !s.HasNext() {
		t.Fatal("fresh stream should have a chunk")
	}
	chunk, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(chunk, []byte("chunk")) {
		t.Fatalf("got %q, want %q", chunk, "chunk")
	}
	if s.HasNext() {
		t.Fatal("stream should be exhausted after one chunk")
	}
	if _, err := s.Next(); !errors.Is(err, errorutil.ErrExhaustedStream) {
		t.Fatalf("got %v, want ErrExhaustedStream", err)
	}
}

func TestConcat(t *testing.T) {
	tests := []struct {
		name    string
		streams []Stream
		want    string
	}{
		{
			name:    "empty",
			streams: nil,
			want:    "",
		},
		{
			name: "inOrder",
			streams: []Stream{
				Bytes([]byte("a")),
				Bytes([]byte("b")),
				Bytes([]byte("c")),
			},
			want: "abc",
		},
		{
			name: "skipsExhaustedChildren",
			streams: []Stream{
				exhausted(),
				Bytes([]byte("x")),
				exhausted(),
				Bytes([]byte("y")),
			},
			want: "xy",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b, err := ReadAll(Concat(test.streams...))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(b) != test.want {
				t.Fatalf("got %q, want %q", b, test.want)
			}
		})
	}
}

func TestCopy(t *testing.T) {
	var buf bytes.Buffer
	n, err := Copy(&buf, Concat(Bytes([]byte("hello ")), Bytes([]byte("world"))))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 11 || buf.String() != "hello world" {
		t.Fatalf("got (%d, %q), want (11, %q)", n, buf.String(), "hello world")
	}
}

// exhausted returns a stream that already reported completion.
func exhausted() Stream {
	s := Bytes(nil)
	_, _ = s.Next()
	return s
}
