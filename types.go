package ollama

import (
	"encoding/json"
	"time"

	"github.com/whyrusleeping/ollama/tools"
)

// Options contains model parameters for controlling generation behavior.
type Options struct {
	Temperature   float64  `json:"temperature,omitempty"`
	TopP          float64  `json:"top_p,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	MinP          float64  `json:"min_p,omitempty"`
	MaxTokens     int      `json:"num_predict,omitempty"`
	NumCtx        int      `json:"num_ctx,omitempty"`
	NumGPU        int      `json:"num_gpu,omitempty"`
	Seed          int      `json:"seed,omitempty"`
	RepeatPenalty float64  `json:"repeat_penalty,omitempty"`
	Stop          []string `json:"stop,omitempty"`
}

// Image is raw image data; it is carried base64 encoded on the wire.
type Image []byte

// Message is one chat turn.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Thinking  string     `json:"thinking,omitempty"`
	Images    []Image    `json:"images,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolName names the tool whose result a "tool" message carries.
	ToolName string `json:"tool_name,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction contains the name and arguments of a called tool.
type ToolCallFunction struct {
	Index     *int           `json:"index,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// GenerateRequest is the body of /api/generate.
type GenerateRequest struct {
	Model     string          `json:"model"`
	Prompt    string          `json:"prompt,omitempty"`
	Suffix    string          `json:"suffix,omitempty"`
	System    string          `json:"system,omitempty"`
	Template  string          `json:"template,omitempty"`
	Context   []int           `json:"context,omitempty"`
	Raw       bool            `json:"raw,omitempty"`
	Format    json.RawMessage `json:"format,omitempty"`
	Images    []Image         `json:"images,omitempty"`
	Options   *Options        `json:"options,omitempty"`
	KeepAlive string          `json:"keep_alive,omitempty"`
	Think     *bool           `json:"think,omitempty"`
	Stream    *bool           `json:"stream,omitempty"`
}

// ChatRequest is the body of /api/chat.
type ChatRequest struct {
	Model     string          `json:"model"`
	Messages  []Message       `json:"messages"`
	Tools     []tools.Tool    `json:"tools,omitempty"`
	Format    json.RawMessage `json:"format,omitempty"`
	Options   *Options        `json:"options,omitempty"`
	KeepAlive string          `json:"keep_alive,omitempty"`
	Think     *bool           `json:"think,omitempty"`
	Stream    *bool           `json:"stream,omitempty"`
}

// EmbedRequest is the body of /api/embed. Input is a string or a []string.
type EmbedRequest struct {
	Model     string   `json:"model"`
	Input     any      `json:"input"`
	Truncate  *bool    `json:"truncate,omitempty"`
	Options   *Options `json:"options,omitempty"`
	KeepAlive string   `json:"keep_alive,omitempty"`
}

// EmbeddingsRequest is the body of the older /api/embeddings.
type EmbeddingsRequest struct {
	Model     string   `json:"model"`
	Prompt    string   `json:"prompt"`
	Options   *Options `json:"options,omitempty"`
	KeepAlive string   `json:"keep_alive,omitempty"`
}

// PullRequest is the body of /api/pull; the same shape is used for /api/push.
type PullRequest struct {
	Model    string `json:"model"`
	Insecure bool   `json:"insecure,omitempty"`
	Stream   *bool  `json:"stream,omitempty"`
}

// PushRequest is the body of /api/push.
type PushRequest = PullRequest

// CreateRequest is the body of /api/create.
type CreateRequest struct {
	Model      string            `json:"model"`
	From       string            `json:"from,omitempty"`
	Files      map[string]string `json:"files,omitempty"`
	Adapters   map[string]string `json:"adapters,omitempty"`
	Template   string            `json:"template,omitempty"`
	License    any               `json:"license,omitempty"`
	System     string            `json:"system,omitempty"`
	Parameters map[string]any    `json:"parameters,omitempty"`
	Messages   []Message         `json:"messages,omitempty"`
	Quantize   string            `json:"quantize,omitempty"`
	Stream     *bool             `json:"stream,omitempty"`
}

// ShowRequest is the body of /api/show.
type ShowRequest struct {
	Model   string `json:"model"`
	Verbose bool   `json:"verbose,omitempty"`
}

// DeleteRequest is the body of /api/delete.
type DeleteRequest struct {
	Model string `json:"model"`
}

// CopyRequest is the body of /api/copy.
type CopyRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// Metrics are the timing counters reported on a terminal frame. Fields are
// nil when the server did not report them.
type Metrics struct {
	TotalDuration      *time.Duration `json:"total_duration,omitempty"`
	LoadDuration       *time.Duration `json:"load_duration,omitempty"`
	PromptEvalCount    *int           `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration *time.Duration `json:"prompt_eval_duration,omitempty"`
	EvalCount          *int           `json:"eval_count,omitempty"`
	EvalDuration       *time.Duration `json:"eval_duration,omitempty"`
}

// TokensPerSecond reports the generation rate, if both counters are known.
func (m Metrics) TokensPerSecond() (float64, bool) {
	if m.EvalCount == nil || m.EvalDuration == nil || *m.EvalDuration <= 0 {
		return 0, false
	}
	return float64(*m.EvalCount) / m.EvalDuration.Seconds(), true
}

// GenerateResponse is one frame of /api/generate.
type GenerateResponse struct {
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
	Response   string    `json:"response"`
	Thinking   string    `json:"thinking,omitempty"`
	Done       bool      `json:"done"`
	DoneReason string    `json:"done_reason,omitempty"`
	Context    []int     `json:"context,omitempty"`
	Metrics
}

// ChatResponse is one frame of /api/chat.
type ChatResponse struct {
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
	Message    Message   `json:"message"`
	Done       bool      `json:"done"`
	DoneReason string    `json:"done_reason,omitempty"`
	Metrics
}

// EmbedResponse is the result of /api/embed.
type EmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
	Metrics
}

// EmbeddingsResponse is the result of /api/embeddings.
type EmbeddingsResponse struct {
	Embedding []float64 `json:"embedding"`
}

// ProgressResponse is one frame of a pull, push or create.
type ProgressResponse struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     *int64 `json:"total,omitempty"`
	Completed *int64 `json:"completed,omitempty"`
}

// ModelDetails describes a model's format and size class.
type ModelDetails struct {
	ParentModel       string   `json:"parent_model,omitempty"`
	Format            string   `json:"format,omitempty"`
	Family            string   `json:"family,omitempty"`
	Families          []string `json:"families,omitempty"`
	ParameterSize     string   `json:"parameter_size,omitempty"`
	QuantizationLevel string   `json:"quantization_level,omitempty"`
}

// ListModel is one entry of /api/tags.
type ListModel struct {
	Name       string       `json:"name,omitempty"`
	Model      string       `json:"model"`
	ModifiedAt time.Time    `json:"modified_at"`
	Digest     string       `json:"digest"`
	Size       int64        `json:"size"`
	Details    ModelDetails `json:"details"`
}

// ListResponse is the result of /api/tags.
type ListResponse struct {
	Models []ListModel `json:"models"`
}

// ShowResponse is the result of /api/show.
type ShowResponse struct {
	ModifiedAt   *time.Time     `json:"modified_at,omitempty"`
	Template     string         `json:"template,omitempty"`
	Modelfile    string         `json:"modelfile,omitempty"`
	License      string         `json:"license,omitempty"`
	System       string         `json:"system,omitempty"`
	Parameters   string         `json:"parameters,omitempty"`
	Details      *ModelDetails  `json:"details,omitempty"`
	ModelInfo    map[string]any `json:"model_info,omitempty"`
	Capabilities []string       `json:"capabilities,omitempty"`
	Messages     []Message      `json:"messages,omitempty"`
}

// ProcessModel is one loaded model reported by /api/ps.
type ProcessModel struct {
	Name      string       `json:"name,omitempty"`
	Model     string       `json:"model"`
	Digest    string       `json:"digest"`
	Size      int64        `json:"size"`
	SizeVRAM  int64        `json:"size_vram"`
	ExpiresAt time.Time    `json:"expires_at"`
	Details   ModelDetails `json:"details"`
}

// ProcessResponse is the result of /api/ps.
type ProcessResponse struct {
	Models []ProcessModel `json:"models"`
}

// StatusResponse reports the outcome of a request with no payload.
type StatusResponse struct {
	Status string `json:"status"`
}

// VersionResponse is the result of /api/version.
type VersionResponse struct {
	Version string `json:"version"`
}

func (GenerateResponse) endpoint() EndpointKind   { return KindGenerate }
func (ChatResponse) endpoint() EndpointKind       { return KindChat }
func (EmbedResponse) endpoint() EndpointKind      { return KindEmbed }
func (EmbeddingsResponse) endpoint() EndpointKind { return KindEmbeddings }
func (ProgressResponse) endpoint() EndpointKind   { return KindProgress }
func (ListResponse) endpoint() EndpointKind       { return KindList }
func (ShowResponse) endpoint() EndpointKind       { return KindShow }
func (ProcessResponse) endpoint() EndpointKind    { return KindProcess }
func (StatusResponse) endpoint() EndpointKind     { return KindStatus }
func (VersionResponse) endpoint() EndpointKind    { return KindVersion }
