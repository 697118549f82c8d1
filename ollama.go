package ollama

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
)

const userAgent = "ollama-go/0.2"

// Generate sends a completion request to /api/generate and waits for the
// whole response.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	req.Stream = ptr(false)
	return call[GenerateResponse](ctx, c, http.MethodPost, "/api/generate", req)
}

// GenerateStream sends a completion request to /api/generate and returns the
// response as it is produced.
func (c *Client) GenerateStream(ctx context.Context, req GenerateRequest) (*Stream[GenerateResponse], error) {
	req.Stream = ptr(true)
	return stream[GenerateResponse](ctx, c, http.MethodPost, "/api/generate", req)
}

// Chat sends a chat request to /api/chat and waits for the whole reply.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	req.Stream = ptr(false)
	return call[ChatResponse](ctx, c, http.MethodPost, "/api/chat", req)
}

// ChatStream sends a chat request to /api/chat and streams the reply.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest) (*Stream[ChatResponse], error) {
	req.Stream = ptr(true)
	return stream[ChatResponse](ctx, c, http.MethodPost, "/api/chat", req)
}

// Embed computes embeddings for one or more inputs.
func (c *Client) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	return call[EmbedResponse](ctx, c, http.MethodPost, "/api/embed", req)
}

// Embeddings computes a single embedding with the older endpoint.
func (c *Client) Embeddings(ctx context.Context, req EmbeddingsRequest) (*EmbeddingsResponse, error) {
	return call[EmbeddingsResponse](ctx, c, http.MethodPost, "/api/embeddings", req)
}

// Pull downloads a model and returns the final status.
func (c *Client) Pull(ctx context.Context, req PullRequest) (*ProgressResponse, error) {
	req.Stream = ptr(false)
	return call[ProgressResponse](ctx, c, http.MethodPost, "/api/pull", req)
}

// PullStream downloads a model, reporting progress.
func (c *Client) PullStream(ctx context.Context, req PullRequest) (*Stream[ProgressResponse], error) {
	req.Stream = ptr(true)
	return stream[ProgressResponse](ctx, c, http.MethodPost, "/api/pull", req)
}

// Push uploads a model and returns the final status.
func (c *Client) Push(ctx context.Context, req PushRequest) (*ProgressResponse, error) {
	req.Stream = ptr(false)
	return call[ProgressResponse](ctx, c, http.MethodPost, "/api/push", req)
}

// PushStream uploads a model, reporting progress.
func (c *Client) PushStream(ctx context.Context, req PushRequest) (*Stream[ProgressResponse], error) {
	req.Stream = ptr(true)
	return stream[ProgressResponse](ctx, c, http.MethodPost, "/api/push", req)
}

// Create builds a model and returns the final status.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*ProgressResponse, error) {
	req.Stream = ptr(false)
	return call[ProgressResponse](ctx, c, http.MethodPost, "/api/create", req)
}

// CreateStream builds a model, reporting progress.
func (c *Client) CreateStream(ctx context.Context, req CreateRequest) (*Stream[ProgressResponse], error) {
	req.Stream = ptr(true)
	return stream[ProgressResponse](ctx, c, http.MethodPost, "/api/create", req)
}

// List returns the locally available models.
func (c *Client) List(ctx context.Context) (*ListResponse, error) {
	return call[ListResponse](ctx, c, http.MethodGet, "/api/tags", nil)
}

// Show returns details about a model.
func (c *Client) Show(ctx context.Context, req ShowRequest) (*ShowResponse, error) {
	return call[ShowResponse](ctx, c, http.MethodPost, "/api/show", req)
}

// Ps returns the models currently loaded in memory.
func (c *Client) Ps(ctx context.Context) (*ProcessResponse, error) {
	return call[ProcessResponse](ctx, c, http.MethodGet, "/api/ps", nil)
}

// Version returns the server version.
func (c *Client) Version(ctx context.Context) (*VersionResponse, error) {
	return call[VersionResponse](ctx, c, http.MethodGet, "/api/version", nil)
}

// Delete removes a model.
func (c *Client) Delete(ctx context.Context, req DeleteRequest) (*StatusResponse, error) {
	return c.noContent(ctx, http.MethodDelete, "/api/delete", req)
}

// Copy duplicates a model under a new name.
func (c *Client) Copy(ctx context.Context, req CopyRequest) (*StatusResponse, error) {
	return c.noContent(ctx, http.MethodPost, "/api/copy", req)
}

// noContent performs a request whose success carries no body.
func (c *Client) noContent(ctx context.Context, method, path string, body any) (*StatusResponse, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return &StatusResponse{Status: "success"}, nil
}

// CreateBlob uploads r as a blob unless the server already has it and
// returns its digest, suitable for CreateRequest.Files.
func (c *Client) CreateBlob(ctx context.Context, r io.ReadSeeker) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing blob: %w", err)
	}
	digest := "sha256:" + hex.EncodeToString(h.Sum(nil))
	path := "/api/blobs/" + digest

	resp, err := c.do(ctx, http.MethodHead, path, nil)
	if err == nil {
		resp.Body.Close()
		return digest, nil
	}
	var rerr *ResponseError
	if !errors.As(err, &rerr) || rerr.StatusCode != http.StatusNotFound {
		return "", err
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding blob: %w", err)
	}
	resp, err = c.do(ctx, http.MethodPost, path, r)
	if err != nil {
		return "", err
	}
	resp.Body.Close()
	return digest, nil
}

// CreateBlobFromFile uploads the file at path; see CreateBlob.
func (c *Client) CreateBlobFromFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return c.CreateBlob(ctx, f)
}
