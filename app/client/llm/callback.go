package llm

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

var _ callbacks.Handler = (*LogCallbackHandler)(nil)

// LogCallbackHandler reports langchaingo model activity through slog.
// Only the model level hooks matter here, chains and agents are never used.
type LogCallbackHandler struct {
	Backend string
}

func (l LogCallbackHandler) HandleText(context.Context, string) {}

func (l LogCallbackHandler) HandleLLMStart(ctx context.Context, prompts []string) {
	slog.DebugContext(ctx, "LLM start", "backend", l.Backend, "prompts", len(prompts))
}

func (l LogCallbackHandler) HandleLLMGenerateContentStart(ctx context.Context, ms []llms.MessageContent) {
	slog.DebugContext(ctx, "LLM generate content start", "backend", l.Backend, "messages", len(ms))
}

func (l LogCallbackHandler) HandleLLMGenerateContentEnd(ctx context.Context, res *llms.ContentResponse) {
	choices := 0
	if res != nil {
		choices = len(res.Choices)
	}
	slog.DebugContext(ctx, "LLM generate content end", "backend", l.Backend, "choices", choices)
}

func (l LogCallbackHandler) HandleLLMError(ctx context.Context, err error) {
	slog.WarnContext(ctx, "LLM error", "backend", l.Backend, "error", err)
}

func (l LogCallbackHandler) HandleChainStart(context.Context, map[string]any) {}

func (l LogCallbackHandler) HandleChainEnd(context.Context, map[string]any) {}

func (l LogCallbackHandler) HandleChainError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "Chain error", "backend", l.Backend, "error", err)
}

func (l LogCallbackHandler) HandleToolStart(context.Context, string) {}

func (l LogCallbackHandler) HandleToolEnd(context.Context, string) {}

func (l LogCallbackHandler) HandleToolError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "Tool error", "backend", l.Backend, "error", err)
}

func (l LogCallbackHandler) HandleAgentAction(context.Context, schema.AgentAction) {}

func (l LogCallbackHandler) HandleAgentFinish(context.Context, schema.AgentFinish) {}

func (l LogCallbackHandler) HandleRetrieverStart(context.Context, string) {}

func (l LogCallbackHandler) HandleRetrieverEnd(context.Context, string, []schema.Document) {}

func (l LogCallbackHandler) HandleStreamingFunc(context.Context, []byte) {}
