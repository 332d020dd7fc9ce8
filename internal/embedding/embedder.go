// Package embedding turns candidate utterances and memory notes into vectors
// for similarity retrieval.
package embedding

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go/v3"
)

// Embedder produces fixed-dimension vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimension() int
}

const (
	DefaultOpenAIModel     = "text-embedding-3-small"
	DefaultOpenAIDimension = 1536
)

// OpenAI implements Embedder on the hosted embeddings endpoint.
type OpenAI struct {
	client    openai.Client
	model     string
	dimension int
}

var _ Embedder = (*OpenAI)(nil)

func NewOpenAI(client openai.Client, model string, dimension int) *OpenAI {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if dimension == 0 {
		dimension = DefaultOpenAIDimension
	}
	return &OpenAI{client: client, model: model, dimension: dimension}
}

func (e *OpenAI) Model() string  { return e.model }
func (e *OpenAI) Dimension() int { return e.dimension }

func (e *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	return toFloat32(resp.Data[0].Embedding, e.dimension, e.model)
}

func toFloat32(in []float64, dimension int, model string) ([]float32, error) {
	if len(in) != dimension {
		return nil, fmt.Errorf("dimension mismatch: got %d, want %d (model: %s)", len(in), dimension, model)
	}
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out, nil
}
