package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"querymind/app/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"
)

func TestOpenAIBackend(t *testing.T) {
	var body map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"message":{"role":"assistant","content":"hello there"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	backend := NewOpenAIBackend(config.OpenAI{BaseURL: server.URL + "/v1", Token: "token", Model: "m"})

	text, err := backend.Generate(context.Background(), Request{
		Prompt:      "hi",
		System:      "be brief",
		Temperature: 0.2,
		MaxTokens:   100,
		JSONMode:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)

	assert.Equal(t, "m", body["model"])
	assert.Len(t, body["messages"], 2)
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
}

func TestOpenAIBackendAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	backend := NewOpenAIBackend(config.OpenAI{BaseURL: server.URL + "/v1", Token: "token", Model: "m"})

	_, err := backend.Generate(context.Background(), Request{Prompt: "hi"})

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, KindUnavailable, llmErr.Kind)
	assert.Equal(t, "openai", llmErr.Backend)
}

type fakeGenerator struct {
	reply   string
	err     error
	options llms.CallOptions
	msgs    []llms.MessageContent
}

func (f *fakeGenerator) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.msgs = messages
	for _, opt := range options {
		opt(&f.options)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func TestOllamaBackend(t *testing.T) {
	main := &fakeGenerator{reply: "big answer"}
	light := &fakeGenerator{reply: "small answer"}
	backend := &OllamaBackend{main: main, light: light, model: "llama3.2", lightModel: "qwen"}

	text, err := backend.Generate(context.Background(), Request{
		Prompt:      "question",
		System:      "system",
		Temperature: 0.5,
		MaxTokens:   500,
		JSONMode:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "big answer", text)
	assert.Len(t, main.msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, main.msgs[0].Role)
	assert.Equal(t, 0.5, main.options.Temperature)
	assert.Equal(t, 500, main.options.MaxTokens)
	assert.True(t, main.options.JSONMode)

	text, err = backend.Generate(context.Background(), Request{Prompt: "rewrite", Lightweight: true})
	require.NoError(t, err)
	assert.Equal(t, "small answer", text)
	assert.Len(t, light.msgs, 1)
}

func TestOllamaBackendError(t *testing.T) {
	backend := &OllamaBackend{main: &fakeGenerator{err: context.DeadlineExceeded}, model: "llama3.2"}

	_, err := backend.Generate(context.Background(), Request{Prompt: "q"})

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, KindTimeout, llmErr.Kind)
	assert.Equal(t, "llama3.2", llmErr.Model)
}

type fakeGeminiModels struct {
	reply  string
	model  string
	config *genai.GenerateContentConfig
}

func (f *fakeGeminiModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = cfg
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(f.reply, genai.RoleModel)},
		},
	}, nil
}

func TestGeminiBackend(t *testing.T) {
	models := &fakeGeminiModels{reply: `{"ok":true}`}
	backend := &GeminiBackend{models: models, model: "gemini-2.0-flash"}

	text, err := backend.Generate(context.Background(), Request{
		Prompt:      "p",
		System:      "s",
		Temperature: 0.2,
		MaxTokens:   100,
		JSONMode:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"ok":true}`, text)
	assert.Equal(t, "gemini-2.0-flash", models.model)
	assert.Equal(t, "application/json", models.config.ResponseMIMEType)
	assert.Equal(t, int32(100), models.config.MaxOutputTokens)
	assert.InDelta(t, 0.2, float64(*models.config.Temperature), 1e-6)
	require.NotNil(t, models.config.SystemInstruction)
}

func TestGeminiBackendEmpty(t *testing.T) {
	backend := &GeminiBackend{models: &fakeGeminiModels{}, model: "gemini-2.0-flash"}

	_, err := backend.Generate(context.Background(), Request{Prompt: "p"})
	assert.Equal(t, KindEmpty, KindOf(err))
}

func TestNewGeminiBackendRequiresKey(t *testing.T) {
	_, err := NewGeminiBackend(context.Background(), config.Gemini{})
	assert.Error(t, err)
}
