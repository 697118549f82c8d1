package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxErrorBody caps how much of a failed response is read into a ResponseError.
const maxErrorBody = 64 << 10

// do sends a request and returns the response when the server answered with
// a 2xx status. The caller owns the returned body.
//
// Failures to reach the server are TransportErrors; a non-2xx status is a
// ResponseError and its body is consumed and closed here.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rdr io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case io.Reader:
		rdr = b
		contentType = "application/octet-stream"
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("error marshaling request: %w", err)
		}
		rdr = bytes.NewReader(data)
		contentType = "application/json"
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return nil, &TransportError{Op: method, URL: url, Err: err}
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err != nil {
			return nil, &TransportError{Op: method, URL: url, Err: err}
		}
		return nil, newResponseError(data, resp.StatusCode)
	}

	return resp, nil
}

// call performs a non-streaming request and decodes the single JSON body into T.
func call[T Response](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out, err := DecodeOnce[T](resp.Body, resp.StatusCode)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("decoding response")
		return nil, err
	}
	return &out, nil
}

// stream performs a streaming request and hands the body to a Stream. Only
// ctx bounds it.
func stream[T Response](ctx context.Context, c *Client, method, path string, body any) (*Stream[T], error) {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	return Decode[T](ctx, resp.Body, resp.StatusCode, WithLineLimit(c.maxLine)), nil
}
