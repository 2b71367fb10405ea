package domain

import (
	"context"
	"strings"
)

// EmbeddingProvider turns text into a vector for a named model.
// A failure (timeout, transport error, malformed body) is returned as an error;
// a successful call may still yield an empty vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string, model string) ([]float32, error)
}

// EmbeddingModel is a model the provider can serve, with its fixed vector length.
type EmbeddingModel struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
}

const (
	ModelNomicEmbedText  = "nomic-embed-text"
	ModelAllMiniLM       = "all-minilm"
	ModelMxbaiEmbedLarge = "mxbai-embed-large"
)

// DefaultEmbeddingModels are the models the reference embeddings are generated for
// when configuration does not list any.
var DefaultEmbeddingModels = []EmbeddingModel{
	{Name: ModelNomicEmbedText, Dimension: 768},
	{Name: ModelAllMiniLM, Dimension: 384},
	{Name: ModelMxbaiEmbedLarge, Dimension: 1024},
}

// ModelRegistry resolves model names to their declared dimensions.
type ModelRegistry struct {
	models       []EmbeddingModel
	byName       map[string]EmbeddingModel
	defaultModel string
}

// NewModelRegistry builds a registry; an empty list falls back to DefaultEmbeddingModels
// and an unknown default falls back to the first model.
func NewModelRegistry(models []EmbeddingModel, defaultModel string) *ModelRegistry {
	if len(models) == 0 {
		models = DefaultEmbeddingModels
	}
	r := &ModelRegistry{byName: make(map[string]EmbeddingModel, len(models))}
	for _, m := range models {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			continue
		}
		if _, dup := r.byName[name]; dup {
			continue
		}
		m.Name = name
		r.models = append(r.models, m)
		r.byName[name] = m
	}
	if _, ok := r.byName[defaultModel]; ok {
		r.defaultModel = defaultModel
	} else if len(r.models) > 0 {
		r.defaultModel = r.models[0].Name
	}
	return r
}

// Lookup returns the model registered under name.
func (r *ModelRegistry) Lookup(name string) (EmbeddingModel, bool) {
	m, ok := r.byName[strings.TrimSpace(name)]
	return m, ok
}

// Dimension returns the declared dimension for name, or 0 if unknown.
func (r *ModelRegistry) Dimension(name string) int {
	return r.byName[strings.TrimSpace(name)].Dimension
}

// Default returns the model used when a caller does not choose one.
func (r *ModelRegistry) Default() string {
	return r.defaultModel
}

// Models returns the registered models in configuration order.
func (r *ModelRegistry) Models() []EmbeddingModel {
	out := make([]EmbeddingModel, len(r.models))
	copy(out, r.models)
	return out
}
