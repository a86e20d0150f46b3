package llm

import (
	"context"
	"fmt"
	"net/http"

	"querymind/app/config"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

var _ Backend = (*OllamaBackend)(nil)

type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// OllamaBackend serves requests from a local Ollama server. Lightweight
// requests go to a smaller model when one is configured.
type OllamaBackend struct {
	main       contentGenerator
	light      contentGenerator
	model      string
	lightModel string
}

func NewOllamaBackend(cfg config.Ollama) (*OllamaBackend, error) {
	main, err := newOllamaModel(cfg.BaseURL, cfg.Model)
	if err != nil {
		return nil, err
	}

	backend := &OllamaBackend{
		main:       main,
		light:      main,
		model:      cfg.Model,
		lightModel: cfg.Model,
	}

	if cfg.LightweightModel != "" && cfg.LightweightModel != cfg.Model {
		light, err := newOllamaModel(cfg.BaseURL, cfg.LightweightModel)
		if err != nil {
			return nil, err
		}
		backend.light = light
		backend.lightModel = cfg.LightweightModel
	}

	return backend, nil
}

func newOllamaModel(baseURL, model string) (*ollama.LLM, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
		ollama.WithHTTPClient(&http.Client{Timeout: httpTimeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ollama client for %s: %w", model, err)
	}

	llm.CallbacksHandler = LogCallbackHandler{Backend: "ollama"}

	return llm, nil
}

func (b *OllamaBackend) Name() string {
	return "ollama"
}

func (b *OllamaBackend) Generate(ctx context.Context, req Request) (string, error) {
	model, modelName := b.main, b.model
	if req.Lightweight {
		model, modelName = b.light, b.lightModel
	}

	messages := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	options := []llms.CallOption{
		llms.WithTemperature(req.Temperature),
	}
	if req.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.JSONMode {
		options = append(options, llms.WithJSONMode())
	}

	res, err := model.GenerateContent(ctx, messages, options...)
	if err != nil {
		return "", wrapError(b.Name(), modelName, err)
	}

	if res == nil || len(res.Choices) == 0 {
		return "", &Error{Kind: KindEmpty, Backend: b.Name(), Model: modelName, Err: errEmptyResponse}
	}

	return res.Choices[0].Content, nil
}
