package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	// DefaultOllamaModel produces 384-dimensional vectors.
	DefaultOllamaModel     = "all-minilm:l6-v2"
	DefaultOllamaDimension = 384
)

// Ollama implements Embedder against a local Ollama server via langchaingo.
type Ollama struct {
	model     embeddings.Embedder
	modelName string
	dimension int
}

var _ Embedder = (*Ollama)(nil)

func NewOllama(serverURL, model string, dimension int) (*Ollama, error) {
	if model == "" {
		model = DefaultOllamaModel
	}
	if dimension == 0 {
		dimension = DefaultOllamaDimension
	}

	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	emb, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder: %w", err)
	}

	return &Ollama{model: emb, modelName: model, dimension: dimension}, nil
}

func (e *Ollama) Model() string  { return e.modelName }
func (e *Ollama) Dimension() int { return e.dimension }

func (e *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := e.model.EmbedQuery(ctx, text)
	if err != nil {
		slog.Warn("embedding failed", "model", e.modelName, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return nil, fmt.Errorf("embed: %w", err)
	}

	if len(vec) != e.dimension {
		return nil, fmt.Errorf("dimension mismatch: got %d, want %d (model: %s)", len(vec), e.dimension, e.modelName)
	}
	return vec, nil
}
