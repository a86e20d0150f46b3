package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"querymind/app/config"

	"github.com/sashabaranov/go-openai"
)

const httpTimeout = 30 * time.Second

var _ Backend = (*OpenAIBackend)(nil)

// OpenAIBackend talks to any OpenAI compatible chat completions endpoint.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

func NewOpenAIBackend(cfg config.OpenAI) *OpenAIBackend {
	clientConfig := openai.DefaultConfig(cfg.Token)

	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout: httpTimeout,
	}

	return &OpenAIBackend{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}
}

func (b *OpenAIBackend) Name() string {
	return "openai"
}

func (b *OpenAIBackend) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:               b.model,
		Messages:            messages,
		MaxCompletionTokens: req.MaxTokens,
		Temperature:         float32(req.Temperature),
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	aiResponse, err := b.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", wrapError(b.Name(), b.model, err)
	}

	if len(aiResponse.Choices) == 0 {
		return "", &Error{Kind: KindEmpty, Backend: b.Name(), Model: b.model, Err: errors.New("no chat completion found")}
	}

	return aiResponse.Choices[0].Message.Content, nil
}
