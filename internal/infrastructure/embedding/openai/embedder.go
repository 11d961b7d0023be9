package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/athreya-m/trialmatch/internal/infrastructure/resilience"
)

// Embedder talks to an OpenAI-compatible embeddings API. Deployments that
// cannot run a local model point EMBED_PROVIDER at this one.
type Embedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	exec   *resilience.Executor
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

func NewEmbedder(cfg Config, exec *resilience.Executor) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Embedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  openai.EmbeddingModel(cfg.Model),
		exec:   exec,
	}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}

	var resp openai.EmbeddingResponse
	err := e.execute(ctx, "embed", func(ctx context.Context) error {
		var callErr error
		resp, callErr = e.client.CreateEmbeddings(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: expected %d vectors, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(resp.Data))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("openai embed: vector index %d out of range", item.Index)
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func (e *Embedder) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if e.exec == nil {
		return wrapTemporaryIfNeeded(operation, fn(ctx))
	}
	err := e.exec.Execute(ctx, "openai."+operation, fn, classifyAPIError)
	return wrapTemporaryIfNeeded(operation, err)
}
