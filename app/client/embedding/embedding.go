package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"

	"querymind/app/config"

	"google.golang.org/genai"
)

// Embedder turns texts into vectors comparable with Cosine.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type embedModels interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

var _ Embedder = (*GenAIEmbedder)(nil)

// GenAIEmbedder uses the Gemini embedding models with the semantic similarity task.
type GenAIEmbedder struct {
	models embedModels
	model  string
}

func NewGenAIEmbedder(ctx context.Context, cfg config.Embedding) (*GenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("embedding api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIEmbedder{
		models: client.Models,
		model:  cfg.Model,
	}, nil
}

func (e *GenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, fmt.Errorf("GenAI embed failed: %w", err)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vectors[i] = emb.Values
	}

	return vectors, nil
}

// Cosine returns the cosine similarity of a and b, 0 for mismatched or zero vectors.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
