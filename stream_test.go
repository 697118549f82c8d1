package ollama

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingBody counts Close calls on the wrapped reader.
type recordingBody struct {
	r      io.Reader
	closes atomic.Int32
	closer io.Closer
}

func (b *recordingBody) Read(p []byte) (int, error) { return b.r.Read(p) }

func (b *recordingBody) Close() error {
	b.closes.Add(1)
	if b.closer != nil {
		return b.closer.Close()
	}
	return nil
}

func newBody(s string) *recordingBody {
	return &recordingBody{r: strings.NewReader(s)}
}

// chunkReader hands out one chunk per Read, the way a network body does.
type chunkReader struct {
	chunks []string
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	if c.chunks[0] == "" {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

func readAll(t *testing.T, d *Decoder) ([]Frame, error) {
	t.Helper()
	var frames []Frame
	for {
		f, err := d.Next()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
	}
}

func TestDecoder_FramesUntilDone(t *testing.T) {
	t.Parallel()
	for _, n := range []int{1, 2, 5} {
		var b strings.Builder
		for i := 1; i < n; i++ {
			b.WriteString(`{"model":"m","created_at":"2024-01-02T03:04:05.123Z","done":false}` + "\n")
		}
		b.WriteString(`{"model":"m","done":true}` + "\n")

		body := newBody(b.String())
		d := NewDecoder(body, 200)
		frames, err := readAll(t, d)
		require.NoError(t, err)
		require.Len(t, frames, n)
		assert.True(t, frames[n-1].Done)
		assert.Equal(t, "m", frames[0].Model)
		assert.Equal(t, StateDone, d.State())
		assert.EqualValues(t, 1, body.closes.Load())
	}
}

func TestDecoder_ErrorAtLine(t *testing.T) {
	t.Parallel()
	lines := []string{
		`{"done":false,"x":1}`,
		`{"done":false,"x":2}`,
		`{"done":false,"x":3}`,
		`{"done":true,"x":4}`,
	}
	for k := 1; k <= len(lines); k++ {
		in := append([]string(nil), lines...)
		in[k-1] = `{"error":"model exploded"}`

		body := newBody(strings.Join(in, "\n") + "\n")
		d := NewDecoder(body, 200)
		frames, err := readAll(t, d)

		require.Len(t, frames, k-1)
		var rerr *ResponseError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, "model exploded", rerr.Message)
		assert.Equal(t, 200, rerr.StatusCode)
		assert.Equal(t, StateFailed, d.State())
		assert.EqualValues(t, 1, body.closes.Load())

		_, again := d.Next()
		assert.Same(t, err, again)
	}
}

func TestDecoder_ThreeFramesInOrder(t *testing.T) {
	t.Parallel()
	body := newBody("{\"done\":false,\"x\":1}\n{\"done\":false,\"x\":2}\n{\"done\":true,\"x\":3}\n")
	frames, err := readAll(t, NewDecoder(body, 200))
	require.NoError(t, err)
	require.Len(t, frames, 3)

	var xs []int64
	for _, f := range frames {
		xs = append(xs, gjson.GetBytes(f.Raw, "x").Int())
	}
	assert.Equal(t, []int64{1, 2, 3}, xs)
}

func TestDecoder_LineSplitAcrossChunks(t *testing.T) {
	t.Parallel()
	body := &recordingBody{r: &chunkReader{chunks: []string{`{"do`, "ne\":true}\n"}}}
	frames, err := readAll(t, NewDecoder(body, 200))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.True(t, frames[0].Done)
}

// failingReader returns its data, then err instead of io.EOF.
type failingReader struct {
	r   io.Reader
	err error
}

func (f *failingReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if errors.Is(err, io.EOF) {
		return n, f.err
	}
	return n, err
}

func TestDecoder_ConnectionLostMidLine(t *testing.T) {
	t.Parallel()
	reset := errors.New("connection reset by peer")
	body := &recordingBody{r: &failingReader{
		r:   strings.NewReader("{\"model\":\"m\",\"response\":\"a\",\"done\":false}\n{\"model\":\"m\",\"resp"),
		err: reset,
	}}
	d := NewDecoder(body, 200)
	frames, err := readAll(t, d)
	require.Len(t, frames, 1)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, reset)
	assert.NotErrorIs(t, err, ErrDecode)
	assert.Equal(t, StateFailed, d.State())
	assert.EqualValues(t, 1, body.closes.Load())
}

func TestDecoder_MergedChunks(t *testing.T) {
	t.Parallel()
	body := &recordingBody{r: &chunkReader{chunks: []string{
		"{\"x\":1}\n{\"x\":2}\n{\"x\"",
		":3}\n",
	}}}
	frames, err := readAll(t, NewDecoder(body, 200))
	require.NoError(t, err)
	assert.Len(t, frames, 3)
}

func TestDecoder_EndWithoutDoneIsNormal(t *testing.T) {
	t.Parallel()
	body := newBody("{\"done\":false}\n\n   \n{\"done\":false}")
	d := NewDecoder(body, 200)
	frames, err := readAll(t, d)
	require.NoError(t, err)
	assert.Len(t, frames, 2)
	assert.Equal(t, StateDone, d.State())
	assert.EqualValues(t, 1, body.closes.Load())
}

func TestDecoder_NothingAfterDone(t *testing.T) {
	t.Parallel()
	body := newBody("{\"done\":true}\n{\"done\":false}\n")
	frames, err := readAll(t, NewDecoder(body, 200))
	require.NoError(t, err)
	assert.Len(t, frames, 1)
}

func TestDecoder_InvalidJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{"truncated", "{\"done\":false}\n{\"done\":\n"},
		{"not json", "hello\n"},
		{"array", "[1,2]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			body := newBody(tt.body)
			d := NewDecoder(body, 200)
			_, err := readAll(t, d)
			require.ErrorIs(t, err, ErrDecode)
			var derr *DecodeError
			require.ErrorAs(t, err, &derr)
			assert.Positive(t, derr.Line)
			assert.Equal(t, StateFailed, d.State())
			assert.EqualValues(t, 1, body.closes.Load())
		})
	}
}

func TestDecoder_LineLimit(t *testing.T) {
	t.Parallel()
	body := newBody(`{"response":"` + strings.Repeat("a", 100) + "\"}\n")
	_, err := readAll(t, NewDecoder(body, 200, WithLineLimit(32)))
	require.ErrorIs(t, err, ErrLineTooLong)
	assert.EqualValues(t, 1, body.closes.Load())
}

func TestDecoder_NullErrorIsIgnored(t *testing.T) {
	t.Parallel()
	frames, err := readAll(t, NewDecoder(newBody(`{"error":null,"done":true}`), 200))
	require.NoError(t, err)
	assert.Len(t, frames, 1)
}

const generateLines = `{"model":"llama3","created_at":"2024-05-01T10:00:00Z","response":"He","done":false}
{"model":"llama3","created_at":"2024-05-01T10:00:01Z","response":"llo","done":false}
{"model":"llama3","created_at":"2024-05-01T10:00:02Z","response":"","done":true,"eval_count":2,"eval_duration":1000000000}
`

func TestStream_All(t *testing.T) {
	t.Parallel()
	body := newBody(generateLines)
	s := Decode[GenerateResponse](context.Background(), body, 200)

	var text strings.Builder
	var last GenerateResponse
	for r, err := range s.All() {
		require.NoError(t, err)
		text.WriteString(r.Response)
		last = r
	}
	assert.Equal(t, "Hello", text.String())
	assert.True(t, last.Done)
	require.NotNil(t, last.EvalCount)
	assert.Equal(t, 2, *last.EvalCount)
	tps, ok := last.TokensPerSecond()
	assert.True(t, ok)
	assert.InDelta(t, 2.0, tps, 1e-9)
	assert.NoError(t, s.Err())
	assert.EqualValues(t, 1, body.closes.Load())
}

func TestStream_BreakReleasesBody(t *testing.T) {
	t.Parallel()
	body := newBody(generateLines)
	s := Decode[GenerateResponse](context.Background(), body, 200)

	seen := 0
	for _, err := range s.All() {
		require.NoError(t, err)
		seen++
		break
	}
	assert.Equal(t, 1, seen)
	assert.EqualValues(t, 1, body.closes.Load())
}

func TestStream_ErrorFrame(t *testing.T) {
	t.Parallel()
	body := newBody(`{"model":"m","response":"a","done":false}` + "\n" + `{"error":"out of memory"}` + "\n")
	s := Decode[GenerateResponse](context.Background(), body, 200)

	require.True(t, s.Next())
	assert.Equal(t, "a", s.Current().Response)
	require.False(t, s.Next())

	var rerr *ResponseError
	require.ErrorAs(t, s.Err(), &rerr)
	assert.Equal(t, "out of memory (status code: 200)", rerr.Error())
	assert.EqualValues(t, 1, body.closes.Load())
}

func TestStream_MissingRequiredField(t *testing.T) {
	t.Parallel()
	body := newBody(`{"model":"m","done":false}` + "\n")
	s := Decode[GenerateResponse](context.Background(), body, 200)

	require.False(t, s.Next())
	var derr *DecodeError
	require.ErrorAs(t, s.Err(), &derr)
	assert.Equal(t, "response", derr.Field)
	assert.Equal(t, 1, derr.Line)
	assert.EqualValues(t, 1, body.closes.Load())
}

func TestStream_ContextCancelUnblocksRead(t *testing.T) {
	t.Parallel()
	pr, pw := io.Pipe()
	body := &recordingBody{r: pr, closer: pr}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := Decode[GenerateResponse](ctx, body, 200)

	go func() {
		_, _ = pw.Write([]byte(`{"model":"m","response":"a","done":false}` + "\n"))
	}()
	require.True(t, s.Next())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	require.False(t, s.Next())
	assert.ErrorIs(t, s.Err(), context.Canceled)
	assert.GreaterOrEqual(t, body.closes.Load(), int32(1))
	_ = pw.Close()
}

func TestStream_Chan(t *testing.T) {
	t.Parallel()
	body := newBody(generateLines)
	s := Decode[GenerateResponse](context.Background(), body, 200)

	var got []string
	for r := range s.Chan(context.Background()) {
		require.NoError(t, r.Err)
		got = append(got, r.Value.Response)
	}
	assert.Equal(t, []string{"He", "llo", ""}, got)
	assert.EqualValues(t, 1, body.closes.Load())
}

func TestStream_ChanError(t *testing.T) {
	t.Parallel()
	body := newBody(`{"error":"boom"}` + "\n")
	s := Decode[ChatResponse](context.Background(), body, 500)

	var results []Result[ChatResponse]
	for r := range s.Chan(context.Background()) {
		results = append(results, r)
	}
	require.Len(t, results, 1)
	var rerr *ResponseError
	require.ErrorAs(t, results[0].Err, &rerr)
	assert.Equal(t, 500, rerr.StatusCode)
}

func TestStream_ChanCancelAfterFirstFrame(t *testing.T) {
	t.Parallel()
	pr, pw := io.Pipe()
	body := &recordingBody{r: pr, closer: pr}
	s := Decode[GenerateResponse](context.Background(), body, 200)

	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Chan(ctx)

	go func() {
		_, _ = pw.Write([]byte(`{"model":"m","response":"a","done":false}` + "\n"))
	}()
	first := <-ch
	require.NoError(t, first.Err)
	assert.Equal(t, "a", first.Value.Response)

	cancel()
	for r := range ch {
		assert.NoError(t, r.Err)
	}
	assert.ErrorIs(t, s.Err(), context.Canceled)
	var terr *TransportError
	assert.False(t, errors.As(s.Err(), &terr))
	assert.GreaterOrEqual(t, body.closes.Load(), int32(1))
	_ = pw.Close()
}

func TestStream_ChanCompletedStreamIgnoresLateCancel(t *testing.T) {
	t.Parallel()
	s := Decode[GenerateResponse](context.Background(), newBody(generateLines), 200)

	ctx, cancel := context.WithCancel(context.Background())
	n := 0
	for r := range s.Chan(ctx) {
		require.NoError(t, r.Err)
		n++
	}
	cancel()
	assert.Equal(t, 3, n)
	assert.NoError(t, s.Err())
}

func TestStream_Collect(t *testing.T) {
	t.Parallel()
	out, err := Decode[ProgressResponse](context.Background(), newBody(
		`{"status":"pulling manifest"}`+"\n"+
			`{"status":"downloading","digest":"sha256:abc","total":10,"completed":5}`+"\n"+
			`{"status":"success"}`+"\n"), 200).Collect()
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Nil(t, out[0].Total)
	require.NotNil(t, out[1].Completed)
	assert.EqualValues(t, 5, *out[1].Completed)
	assert.Equal(t, "success", out[2].Status)
}
