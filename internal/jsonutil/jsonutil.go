package jsonutil

import (
	"bytes"

	gojson "github.com/goccy/go-json"
)

// EscapeString returns s encoded as a quoted JSON string literal.
func EscapeString(s string) string {
	b, err := gojson.Marshal(s)
	if err != nil {
		// can't really happen for a string value
		return `"error occurred escaping json string"`
	}
	return string(b)
}

// AppendString appends the quoted JSON encoding of s to buf.
func AppendString(buf *bytes.Buffer, s string) {
	buf.WriteString(EscapeString(s))
}

// MarshalDetail renders an arbitrarily nested map/array/scalar detail tree.
func MarshalDetail(detail map[string]interface{}) (string, error) {
	b, err := gojson.Marshal(detail)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
