package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"golang.org/x/sync/singleflight"
)

// embedderFactory builds a langchaingo embedder bound to one model.
type embedderFactory func(model string) (embeddings.Embedder, error)

// embedderPool lazily creates one embedder per model and coalesces identical
// in-flight requests. Results are not kept once the call returns.
type embedderPool struct {
	provider string
	factory  embedderFactory

	mu        sync.Mutex
	embedders map[string]embeddings.Embedder
	sfGroup   singleflight.Group
}

func newEmbedderPool(provider string, factory embedderFactory) *embedderPool {
	return &embedderPool{
		provider:  provider,
		factory:   factory,
		embedders: make(map[string]embeddings.Embedder),
	}
}

func (p *embedderPool) get(model string) (embeddings.Embedder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.embedders[model]; ok {
		return e, nil
	}
	e, err := p.factory(model)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s embedder for model %q: %w", p.provider, model, err)
	}
	p.embedders[model] = e
	return e, nil
}

func (p *embedderPool) embed(ctx context.Context, text, model string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("input text cannot be empty for embedding")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("%s model name cannot be empty", p.provider)
	}

	embedder, err := p.get(model)
	if err != nil {
		return nil, err
	}

	res, err, _ := p.sfGroup.Do(model+"\x00"+text, func() (interface{}, error) {
		vec, fetchErr := embedder.EmbedQuery(ctx, text)
		if fetchErr != nil {
			return nil, fmt.Errorf("failed to generate embedding using %s: %w", p.provider, fetchErr)
		}
		return vec, nil
	})
	if err != nil {
		return nil, err
	}

	vec, ok := res.([]float32)
	if !ok {
		return nil, fmt.Errorf("unexpected type from singleflight.Do for %s embedding: %T", p.provider, res)
	}
	// Callers own the returned slice; shared singleflight results are copied.
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, nil
}
