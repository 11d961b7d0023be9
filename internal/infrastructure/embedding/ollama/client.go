package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/athreya-m/trialmatch/internal/infrastructure/resilience"
)

// Client embeds text through a local ollama instance. Requests run inside
// the shared resilience executor so a wedged model host trips the breaker
// instead of stalling every indexing worker.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL, model string, exec *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		exec:       exec,
	}
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": c.model,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := c.execute(ctx, "embed", func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/embed", request, &response, "embed")
	})
	if err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: expected %d vectors, got %d", len(texts), len(response.Embeddings))
	}
	return response.Embeddings, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.exec == nil {
		return wrapTemporaryIfNeeded(operation, fn(ctx))
	}
	err := c.exec.Execute(ctx, "ollama."+operation, fn, classifyEmbedError)
	return wrapTemporaryIfNeeded(operation, err)
}
