package embedding

import (
	"context"
	"fmt"

	"quiz-sense/internal/domain"

	"github.com/tmc/langchaingo/embeddings"
	ollamaLLM "github.com/tmc/langchaingo/llms/ollama"
)

// OllamaEmbeddingService implements domain.EmbeddingProvider against a local
// Ollama daemon. Any model the daemon has pulled can be requested.
type OllamaEmbeddingService struct {
	pool *embedderPool
}

// NewOllamaEmbeddingService creates a new OllamaEmbeddingService for the given server URL.
func NewOllamaEmbeddingService(serverURL string) (*OllamaEmbeddingService, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("ollama server URL cannot be empty")
	}

	factory := func(model string) (embeddings.Embedder, error) {
		llm, err := ollamaLLM.New(
			ollamaLLM.WithModel(model),
			ollamaLLM.WithServerURL(serverURL),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create LangchainGo Ollama LLM client for embedder: %w", err)
		}
		return embeddings.NewEmbedder(llm)
	}

	return &OllamaEmbeddingService{pool: newEmbedderPool("ollama", factory)}, nil
}

// Embed creates an embedding for text with the named model.
func (s *OllamaEmbeddingService) Embed(ctx context.Context, text, model string) ([]float32, error) {
	return s.pool.embed(ctx, text, model)
}

var _ domain.EmbeddingProvider = (*OllamaEmbeddingService)(nil)
