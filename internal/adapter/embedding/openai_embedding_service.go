package embedding

import (
	"context"
	"fmt"

	"quiz-sense/internal/domain"

	"github.com/tmc/langchaingo/embeddings"
	openaiLLM "github.com/tmc/langchaingo/llms/openai"
)

// OpenAIEmbeddingService implements domain.EmbeddingProvider using the OpenAI embeddings API.
type OpenAIEmbeddingService struct {
	pool *embedderPool
}

// NewOpenAIEmbeddingService creates a new OpenAIEmbeddingService.
func NewOpenAIEmbeddingService(apiKey string) (*OpenAIEmbeddingService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key cannot be empty")
	}

	factory := func(model string) (embeddings.Embedder, error) {
		llm, err := openaiLLM.New(
			openaiLLM.WithToken(apiKey),
			openaiLLM.WithEmbeddingModel(model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create LangchainGo OpenAI LLM client for embedder: %w", err)
		}
		return embeddings.NewEmbedder(llm)
	}

	return &OpenAIEmbeddingService{pool: newEmbedderPool("openai", factory)}, nil
}

// Embed creates an embedding for text with the named model.
func (s *OpenAIEmbeddingService) Embed(ctx context.Context, text, model string) ([]float32, error) {
	return s.pool.embed(ctx, text, model)
}

var _ domain.EmbeddingProvider = (*OpenAIEmbeddingService)(nil)
