package embedding

import (
	"context"
	"testing"

	"querymind/app/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	vectors  [][]float32
	taskType string
	inputs   int
}

func (f *fakeModels) EmbedContent(_ context.Context, _ string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.taskType = cfg.TaskType
	f.inputs = len(contents)

	res := &genai.EmbedContentResponse{}
	for _, v := range f.vectors {
		res.Embeddings = append(res.Embeddings, &genai.ContentEmbedding{Values: v})
	}
	return res, nil
}

func TestGenAIEmbedder(t *testing.T) {
	models := &fakeModels{vectors: [][]float32{{1, 0}, {0, 1}}}
	embedder := &GenAIEmbedder{models: models, model: "gemini-embedding-001"}

	vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Len(t, vectors, 2)
	assert.Equal(t, 2, models.inputs)
	assert.Equal(t, "SEMANTIC_SIMILARITY", models.taskType)
}

func TestGenAIEmbedderCountMismatch(t *testing.T) {
	embedder := &GenAIEmbedder{models: &fakeModels{vectors: [][]float32{{1}}}, model: "m"}

	_, err := embedder.Embed(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestNewGenAIEmbedderRequiresKey(t *testing.T) {
	_, err := NewGenAIEmbedder(context.Background(), config.Embedding{})
	assert.Error(t, err)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 3}), 1e-9)
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 2}))
}
