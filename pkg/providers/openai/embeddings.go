package openai

import (
	"context"
	"fmt"
)

const embeddingsPath = "/embeddings"

// defaultEmbedModel is the embedding model served by the same endpoints that
// host the chat models.
const defaultEmbedModel = "text-embedding-3-small"

// Embed converts text to an embedding vector via the /embeddings endpoint,
// satisfying vectordb.Embedder. The EmbedModel field on the adapter selects
// the model; empty falls back to text-embedding-3-small.
func (a *Adapter) Embed(ctx context.Context, text string) ([]float64, error) {
	model := a.EmbedModel
	if model == "" {
		model = defaultEmbedModel
	}

	req := map[string]any{
		"model": model,
		"input": text,
	}

	var resp struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := a.PostJSON(ctx, embeddingsPath, req, &resp); err != nil {
		return nil, fmt.Errorf("openai: embeddings: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai: embeddings: empty data in response")
	}

	return resp.Data[0].Embedding, nil
}
