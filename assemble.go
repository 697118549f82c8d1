package ollama

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
)

// EndpointKind identifies the response shape an endpoint produces.
type EndpointKind int

// Endpoint kinds, one per response type.
const (
	KindGenerate EndpointKind = iota + 1
	KindChat
	KindEmbed
	KindEmbeddings
	KindProgress
	KindList
	KindShow
	KindProcess
	KindStatus
	KindVersion
)

var kindNames = map[EndpointKind]string{
	KindGenerate:   "generate",
	KindChat:       "chat",
	KindEmbed:      "embed",
	KindEmbeddings: "embeddings",
	KindProgress:   "progress",
	KindList:       "list",
	KindShow:       "show",
	KindProcess:    "process",
	KindStatus:     "status",
	KindVersion:    "version",
}

func (k EndpointKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("EndpointKind(%d)", int(k))
}

// requiredFields lists the members a frame must carry to be accepted as the
// kind's response type. Everything else is optional.
var requiredFields = map[EndpointKind][]string{
	KindGenerate:   {"model", "response"},
	KindChat:       {"model", "message"},
	KindEmbed:      {"embeddings"},
	KindEmbeddings: {"embedding"},
	KindProgress:   {"status"},
	KindList:       {"models"},
	KindProcess:    {"models"},
	KindStatus:     {"status"},
	KindVersion:    {"version"},
}

// Required returns the fields a response of kind k must contain.
func (k EndpointKind) Required() []string {
	return append([]string(nil), requiredFields[k]...)
}

// Response is the closed set of types a response body can be decoded into.
type Response interface {
	GenerateResponse | ChatResponse | EmbedResponse | EmbeddingsResponse |
		ProgressResponse | ListResponse | ShowResponse | ProcessResponse |
		StatusResponse | VersionResponse

	endpoint() EndpointKind
}

// KindOf reports the endpoint kind of response type T.
func KindOf[T Response]() EndpointKind {
	var zero T
	return zero.endpoint()
}

func assemble[T Response](f Frame, line int) (T, error) {
	var out T
	for _, field := range requiredFields[out.endpoint()] {
		if !gjson.GetBytes(f.Raw, field).Exists() {
			return out, &DecodeError{Line: line, Field: field}
		}
	}
	if err := json.Unmarshal(f.Raw, &out); err != nil {
		return out, &DecodeError{Line: line, Err: err}
	}
	return out, nil
}

// DecodeOnce decodes a complete, non-streamed body into T using the same
// rules as a stream: an "error" member yields a ResponseError, malformed or
// incomplete JSON a DecodeError.
func DecodeOnce[T Response](r io.Reader, status int) (T, error) {
	var zero T
	data, err := io.ReadAll(r)
	if err != nil {
		return zero, &TransportError{Op: "read", Err: err}
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return zero, &DecodeError{Err: errors.New("empty body")}
	}

	f, err := parseFrame(data, 0, status)
	if err != nil {
		return zero, err
	}
	return assemble[T](f, 0)
}
