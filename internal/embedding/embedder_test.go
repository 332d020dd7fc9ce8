package embedding

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingServer(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)

		vec := make([]float64, dims)
		for i := range vec {
			vec[i] = float64(i) / float64(dims)
		}
		body, _ := json.Marshal(map[string]any{
			"object": "list",
			"model":  DefaultOpenAIModel,
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": vec}},
			"usage":  map[string]any{"prompt_tokens": 3, "total_tokens": 3},
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, string(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIEmbed(t *testing.T) {
	srv := embeddingServer(t, 8)
	client := openai.NewClient(option.WithAPIKey("test"), option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	e := NewOpenAI(client, "", 8)
	vec, err := e.Embed(context.Background(), "I used React for three years")
	require.NoError(t, err)

	require.Len(t, vec, 8)
	assert.InDelta(t, 0.125, vec[1], 1e-6)
	assert.Equal(t, DefaultOpenAIModel, e.Model())
}

func TestOpenAIEmbedDimensionMismatch(t *testing.T) {
	srv := embeddingServer(t, 4)
	client := openai.NewClient(option.WithAPIKey("test"), option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	_, err := NewOpenAI(client, "", 8).Embed(context.Background(), "hi")
	assert.ErrorContains(t, err, "dimension mismatch")
}
