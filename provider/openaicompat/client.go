package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	luna "github.com/lunasparkai/luna"
)

// Client talks to an OpenAI-compatible chat completions and embeddings
// API. It implements luna.Completer; a Client configured with an
// embedding model also serves as the embedder behind the vector index.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  *slog.Logger

	temperature *float64
	topP        *float64
	seed        *int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client (e.g. for timeouts or proxies).
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.client = c }
}

// WithLogger sets a structured logger. Default: slog.Default.
func WithLogger(l *slog.Logger) ClientOption {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithTemperature sets the sampling temperature for every request.
func WithTemperature(t float64) ClientOption {
	return func(cl *Client) { cl.temperature = &t }
}

// WithTopP sets nucleus sampling top-p for every request.
func WithTopP(p float64) ClientOption {
	return func(cl *Client) { cl.topP = &p }
}

// WithSeed sets a deterministic seed for reproducible outputs.
func WithSeed(s int) ClientOption {
	return func(cl *Client) { cl.seed = &s }
}

// NewClient creates a client for an OpenAI-compatible API.
//
// baseURL is the API base (e.g. "https://api.openai.com/v1",
// "http://localhost:11434/v1"); the endpoint paths are appended
// automatically. apiKey may be empty for local servers.
func NewClient(apiKey, model, baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Complete streams a completion into ch (closing it when the stream
// ends) and returns the accumulated response including any structured
// tool calls.
func (c *Client) Complete(ctx context.Context, req luna.CompletionRequest, ch chan<- luna.StreamDelta) (luna.CompletionResponse, error) {
	body := c.buildBody(req)
	body.Stream = true
	body.StreamOptions = &streamOptions{IncludeUsage: true}

	resp, err := c.sendHTTP(ctx, "/chat/completions", body)
	if err != nil {
		close(ch)
		return luna.CompletionResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		close(ch)
		return luna.CompletionResponse{}, c.httpErr(resp)
	}

	// streamSSE closes ch when done.
	return c.streamSSE(ctx, resp.Body, ch)
}

// Embed returns one embedding vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.sendHTTP(ctx, "/embeddings", embeddingRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.httpErr(resp)
	}

	var er embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}
	if len(er.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs", len(er.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range er.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embeddings: index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// buildBody converts a completion request into the wire body. The
// prompt travels as a single user message; images become content
// blocks on the same message.
func (c *Client) buildBody(req luna.CompletionRequest) chatRequest {
	var content any = req.Prompt
	if len(req.Images) > 0 {
		blocks := []contentBlock{{Type: "text", Text: req.Prompt}}
		for _, img := range req.Images {
			blocks = append(blocks, contentBlock{
				Type:     "image_url",
				ImageURL: &imageURL{URL: "data:" + img.MimeType + ";base64," + img.Base64},
			})
		}
		content = blocks
	}

	body := chatRequest{
		Model:       c.model,
		Messages:    []message{{Role: "user", Content: content}},
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
		Temperature: c.temperature,
		TopP:        c.topP,
		Seed:        c.seed,
	}
	for _, t := range req.Tools {
		params := t.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{}`)
		}
		body.Tools = append(body.Tools, tool{
			Type: "function",
			Function: function{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return body
}

// sendHTTP marshals body and posts it to baseURL+path.
func (c *Client) sendHTTP(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	return c.client.Do(httpReq)
}

// httpErr reads the response body into a typed transport error.
func (c *Client) httpErr(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return &luna.ErrHTTP{Status: resp.StatusCode, Body: string(body)}
}

// Compile-time interface check.
var _ luna.Completer = (*Client)(nil)
