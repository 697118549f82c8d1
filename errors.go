package ollama

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrDecode is matched by every DecodeError via errors.Is.
var ErrDecode = errors.New("ollama: decode error")

// TransportError reports a failure to exchange a request with the server at
// all: connection refused, timeouts, TLS failures. It is never produced for a
// response the server actually sent.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("ollama: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ollama: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ResponseError is an error reported by the server, either as a non-2xx
// status or as an "error" object inside a stream. StatusCode is -1 when the
// status is unknown.
type ResponseError struct {
	Message    string
	StatusCode int
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s (status code: %d)", e.Message, e.StatusCode)
}

// newResponseError builds a ResponseError from a raw error body, preferring
// the JSON "error" field when the body carries one.
func newResponseError(body []byte, status int) *ResponseError {
	msg := strings.TrimSpace(string(body))

	var payload struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != nil {
		msg = *payload.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &ResponseError{Message: msg, StatusCode: status}
}

// DecodeError reports a malformed frame or a frame that lacks a field required
// by the response type it was decoded into.
type DecodeError struct {
	// Line is the 1-based line number within the stream, 0 for a single body.
	Line  int
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString("ollama: decode")
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": missing required field %q", e.Field)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }
