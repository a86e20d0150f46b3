package llm

import (
	"context"
	"errors"
	"fmt"

	"querymind/app/config"

	"google.golang.org/genai"
)

var _ Backend = (*GeminiBackend)(nil)

type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiBackend calls the Gemini API through the genai SDK.
type GeminiBackend struct {
	models geminiModels
	model  string
}

func NewGeminiBackend(ctx context.Context, cfg config.Gemini) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GeminiBackend{
		models: client.Models,
		model:  cfg.Model,
	}, nil
}

func (b *GeminiBackend) Name() string {
	return "gemini"
}

func (b *GeminiBackend) Generate(ctx context.Context, req Request) (string, error) {
	temp := float32(req.Temperature)

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}

	res, err := b.models.GenerateContent(ctx, b.model, contents, cfg)
	if err != nil {
		return "", wrapError(b.Name(), b.model, err)
	}

	text := res.Text()
	if text == "" {
		return "", &Error{Kind: KindEmpty, Backend: b.Name(), Model: b.model, Err: errEmptyResponse}
	}

	return text, nil
}
