package embedding

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/athreya-m/trialmatch/internal/core/ports"
)

// ThrottledEmbedder paces calls to the wrapped embedder. One token covers one
// text, so a batch of n segments consumes n tokens before the request leaves.
type ThrottledEmbedder struct {
	inner   ports.Embedder
	limiter *rate.Limiter
}

// NewThrottledEmbedder limits embedding throughput to textsPerSecond with the
// given burst. A non-positive rate disables throttling.
func NewThrottledEmbedder(inner ports.Embedder, textsPerSecond float64, burst int) *ThrottledEmbedder {
	limit := rate.Limit(textsPerSecond)
	if textsPerSecond <= 0 {
		limit = rate.Inf
		burst = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &ThrottledEmbedder{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (t *ThrottledEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := t.waitFor(ctx, len(texts)); err != nil {
		return nil, err
	}
	return t.inner.Embed(ctx, texts)
}

func (t *ThrottledEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := t.waitFor(ctx, 1); err != nil {
		return nil, err
	}
	return t.inner.EmbedQuery(ctx, text)
}

// waitFor acquires n tokens in burst-sized chunks; WaitN rejects requests
// larger than the burst outright.
func (t *ThrottledEmbedder) waitFor(ctx context.Context, n int) error {
	for n > 0 {
		take := n
		if burst := t.limiter.Burst(); take > burst {
			take = burst
		}
		if err := t.limiter.WaitN(ctx, take); err != nil {
			return err
		}
		n -= take
	}
	return nil
}
