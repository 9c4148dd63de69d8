// Package ollama is a client for the embedding endpoints of an Ollama model
// server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Default configuration values.
const (
	DefaultHost    = "http://localhost:11434"
	DefaultTimeout = 5 * time.Minute
)

// Client talks to one model on an Ollama server.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewClient creates an Ollama client for model. A zero timeout uses
// DefaultTimeout.
func NewClient(baseURL, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultHost
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Model returns the model name the client was created for.
func (c *Client) Model() string { return c.model }

// ModelInfo is the subset of /api/show the indexer needs.
type ModelInfo struct {
	Architecture    string
	EmbeddingLength int
}

type showReq struct {
	Model string `json:"model"`
}

type showResp struct {
	ModelInfo map[string]any `json:"model_info"`
}

// Show loads the model's metadata, including its declared embedding length.
func (c *Client) Show(ctx context.Context) (ModelInfo, error) {
	var resp showResp
	if err := c.post(ctx, "/api/show", showReq{Model: c.model}, &resp); err != nil {
		return ModelInfo{}, fmt.Errorf("ollama show %s: %w", c.model, err)
	}
	arch, _ := resp.ModelInfo["general.architecture"].(string)
	if arch == "" {
		return ModelInfo{}, fmt.Errorf("ollama show %s: model_info has no general.architecture", c.model)
	}
	length, ok := resp.ModelInfo[arch+".embedding_length"].(float64)
	if !ok || length <= 0 {
		return ModelInfo{}, fmt.Errorf("ollama show %s: model_info has no %s.embedding_length", c.model, arch)
	}
	return ModelInfo{Architecture: arch, EmbeddingLength: int(length)}, nil
}

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed encodes texts in one batched call. Vectors are returned in input
// order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp embedResp
	if err := c.post(ctx, "/api/embed", embedReq{Model: c.model, Input: texts}, &resp); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
