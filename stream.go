package ollama

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultMaxLineSize bounds a single NDJSON line.
const DefaultMaxLineSize = 16 << 20

// ErrLineTooLong is wrapped by the DecodeError returned for an oversized line.
var ErrLineTooLong = errors.New("line exceeds maximum size")

// DecoderState is the position of a Decoder in its lifecycle.
type DecoderState int

const (
	// StateOpen means more frames may follow.
	StateOpen DecoderState = iota
	// StateDone means the stream ended normally and the body is closed.
	StateDone
	// StateFailed means the stream ended with an error, which Next keeps
	// returning. The body is closed.
	StateFailed
)

func (s DecoderState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("DecoderState(%d)", int(s))
	}
}

// Frame is one decoded line of a stream.
type Frame struct {
	Done      bool
	Model     string
	CreatedAt time.Time
	// Raw is the complete JSON object, owned by the frame.
	Raw []byte
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithLineLimit overrides DefaultMaxLineSize. Values <= 0 are ignored.
func WithLineLimit(n int) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.limit = n
		}
	}
}

// Decoder turns an NDJSON response body into frames.
//
// A Decoder owns its body and closes it once it reaches a terminal state,
// or when Close is called. Next must be called from one goroutine at a time;
// Close may be called concurrently with Next to abort a blocked read.
type Decoder struct {
	body   io.ReadCloser
	r      *bufio.Reader
	status int
	limit  int

	state DecoderState
	err   error
	line  int

	closeOnce sync.Once
	closeErr  error
}

// NewDecoder wraps body. status is the HTTP status the body arrived with and
// is attached to any ResponseError found in the stream.
func NewDecoder(body io.ReadCloser, status int, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		body:   body,
		r:      bufio.NewReader(body),
		status: status,
		limit:  DefaultMaxLineSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State reports the current state.
func (d *Decoder) State() DecoderState { return d.state }

// Line reports how many non-empty lines have been consumed.
func (d *Decoder) Line() int { return d.line }

// Next returns the next frame. It returns io.EOF once the stream has ended
// normally, either after a frame with done set or when the body is exhausted.
// A stream that fails keeps returning the same error.
func (d *Decoder) Next() (Frame, error) {
	switch d.state {
	case StateDone:
		return Frame{}, io.EOF
	case StateFailed:
		return Frame{}, d.err
	}

	for {
		line, err := d.readLine()
		if err != nil && !errors.Is(err, io.EOF) {
			return Frame{}, d.fail(err)
		}
		if len(bytes.TrimSpace(line)) > 0 {
			d.line++
			f, perr := parseFrame(line, d.line, d.status)
			if perr != nil {
				return Frame{}, d.fail(perr)
			}
			if f.Done {
				d.state = StateDone
				d.Close()
			}
			return f, nil
		}
		if err == nil {
			continue
		}
		d.state = StateDone
		d.Close()
		return Frame{}, io.EOF
	}
}

// Close releases the body. It is safe to call more than once and from
// another goroutine.
func (d *Decoder) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.body.Close()
	})
	return d.closeErr
}

func (d *Decoder) fail(err error) error {
	d.state = StateFailed
	d.err = err
	d.Close()
	return err
}

// readLine returns one line including its terminator. The final line of a
// body may lack the terminator, in which case it is returned with io.EOF.
func (d *Decoder) readLine() ([]byte, error) {
	var buf []byte
	for {
		chunk, err := d.r.ReadSlice('\n')
		if len(buf)+len(chunk) > d.limit {
			return nil, &DecodeError{Line: d.line + 1, Err: ErrLineTooLong}
		}
		buf = append(buf, chunk...)
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == nil, errors.Is(err, io.EOF):
			return buf, err
		default:
			return buf, &TransportError{Op: "read", Err: err}
		}
	}
}

// parseFrame applies the wire rules to one JSON object: an "error" member
// turns the whole object into a ResponseError, anything that is not a JSON
// object is a DecodeError.
func parseFrame(data []byte, line, status int) (Frame, error) {
	data = bytes.TrimSpace(data)
	if !gjson.ValidBytes(data) {
		return Frame{}, &DecodeError{Line: line, Err: fmt.Errorf("invalid JSON: %s", preview(data))}
	}
	obj := gjson.ParseBytes(data)
	if !obj.IsObject() {
		return Frame{}, &DecodeError{Line: line, Err: fmt.Errorf("expected a JSON object, got %s", obj.Type)}
	}

	if e := obj.Get("error"); e.Exists() && e.Type != gjson.Null {
		msg := e.String()
		if msg == "" {
			msg = "unknown error"
		}
		if status == 0 {
			status = -1
		}
		return Frame{}, &ResponseError{Message: msg, StatusCode: status}
	}

	f := Frame{
		Done:  obj.Get("done").Bool(),
		Model: obj.Get("model").String(),
		Raw:   data,
	}
	if ts := obj.Get("created_at"); ts.Exists() && ts.String() != "" {
		t, err := time.Parse(time.RFC3339Nano, ts.String())
		if err != nil {
			return Frame{}, &DecodeError{Line: line, Field: "created_at", Err: err}
		}
		f.CreatedAt = t
	}
	return f, nil
}

func preview(b []byte) string {
	const n = 64
	if len(b) > n {
		return fmt.Sprintf("%q...", b[:n])
	}
	return fmt.Sprintf("%q", b)
}

// Result carries one value or the error that ended a stream.
type Result[T any] struct {
	Value T
	Err   error
}

// Stream is a typed view over a Decoder.
//
// It can be consumed by blocking iteration (Next/Current, or All with a
// range loop) or through Chan. Either way the body is released when
// iteration stops, on errors, and when the stream's context is canceled.
type Stream[T Response] struct {
	dec  *Decoder
	ctx  context.Context
	stop func() bool

	cur   T
	frame Frame
	err   error
}

// Decode returns a Stream of T over an NDJSON body. Canceling ctx aborts
// any blocked read and closes the body.
func Decode[T Response](ctx context.Context, body io.ReadCloser, status int, opts ...DecoderOption) *Stream[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	s := &Stream[T]{
		dec: NewDecoder(body, status, opts...),
		ctx: ctx,
	}
	s.stop = context.AfterFunc(ctx, func() { s.dec.Close() })
	return s
}

// Next advances to the next value. It returns false when the stream ends or
// fails; Err distinguishes the two.
func (s *Stream[T]) Next() bool {
	if s.err != nil {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		s.release()
		return false
	}

	f, err := s.dec.Next()
	if err != nil {
		switch {
		case s.ctx.Err() != nil:
			s.err = s.ctx.Err()
		case errors.Is(err, io.EOF):
		default:
			s.err = err
		}
		s.release()
		return false
	}

	v, err := assemble[T](f, s.dec.Line())
	if err != nil {
		s.err = s.dec.fail(err)
		s.release()
		return false
	}
	s.cur, s.frame = v, f
	return true
}

// Current returns the value produced by the last successful Next.
func (s *Stream[T]) Current() T { return s.cur }

// Frame returns the raw frame behind Current.
func (s *Stream[T]) Frame() Frame { return s.frame }

// Err returns the error that ended the stream, or nil after a normal end.
func (s *Stream[T]) Err() error { return s.err }

// Close stops the stream and releases the body.
func (s *Stream[T]) Close() error {
	return s.release()
}

func (s *Stream[T]) release() error {
	s.stop()
	return s.dec.Close()
}

// All returns an iterator over the remaining values. The final pair carries
// the error if the stream failed. Breaking out of the loop closes the stream.
func (s *Stream[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.cur, nil) {
				return
			}
		}
		if s.err != nil {
			var zero T
			yield(zero, s.err)
		}
	}
}

// Chan consumes the stream on a separate goroutine and delivers values on
// the returned channel, which is closed when the stream ends. A failed
// stream delivers one final Result with Err set. Canceling ctx stops the
// goroutine and closes the body even if nobody reads the channel; once the
// channel is closed, Err reports ctx.Err().
func (s *Stream[T]) Chan(ctx context.Context) <-chan Result[T] {
	out := make(chan Result[T])
	stop := context.AfterFunc(ctx, func() { s.dec.Close() })

	go func() {
		defer close(out)
		defer stop()
		defer s.Close()

		for s.Next() {
			select {
			case out <- Result[T]{Value: s.cur}:
			case <-ctx.Done():
				s.err = ctx.Err()
				return
			}
		}
		if err := ctx.Err(); err != nil && (s.err != nil || s.dec.State() != StateDone) {
			s.err = err
			return
		}
		if s.err != nil {
			select {
			case out <- Result[T]{Err: s.err}:
			case <-ctx.Done():
			}
		}
	}()
	return out
}

// Collect drains the stream into a slice.
func (s *Stream[T]) Collect() ([]T, error) {
	var out []T
	for v, err := range s.All() {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}
