package embedding

import (
	"fmt"

	"quiz-sense/internal/config"
	"quiz-sense/internal/domain"
)

// NewProvider selects the embedding backend named by cfg.Source.
func NewProvider(cfg config.EmbeddingConfig) (domain.EmbeddingProvider, error) {
	switch cfg.Source {
	case "ollama", "":
		return NewOllamaEmbeddingService(cfg.Ollama.ServerURL)
	case "openai":
		return NewOpenAIEmbeddingService(cfg.OpenAI.APIKey)
	default:
		return nil, fmt.Errorf("unsupported embedding source %q", cfg.Source)
	}
}
