package llm

import (
	"context"
	"log/slog"

	"querymind/app/config"

	"github.com/samber/do"
	"github.com/samber/oops"
)

// NewClient builds the fallback chain in the configured order. Backends that
// cannot be constructed are skipped so a missing API key does not stop startup.
func NewClient(di *do.Injector) (*Chain, error) {
	cfg := do.MustInvoke[*config.Config](di)
	ctx := do.MustInvoke[context.Context](di)

	var backends []Backend

	for _, name := range cfg.LLM.Order {
		backend, err := newBackend(ctx, name, cfg.LLM)
		if err != nil {
			slog.Warn("LLM backend disabled",
				"backend", name,
				"error", err,
			)
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, oops.
			In("llm").
			With("order", cfg.LLM.Order).
			Errorf("no usable LLM backend")
	}

	chain := NewChain(backends...)
	slog.Info("LLM chain ready", "backends", chain.Backends())

	return chain, nil
}

func newBackend(ctx context.Context, name string, cfg config.LLM) (Backend, error) {
	switch name {
	case "gemini":
		return NewGeminiBackend(ctx, cfg.Gemini)
	case "ollama":
		return NewOllamaBackend(cfg.Ollama)
	case "openai":
		if cfg.OpenAI.Model == "" {
			return nil, oops.Errorf("openai model is required")
		}
		return NewOpenAIBackend(cfg.OpenAI), nil
	default:
		return nil, oops.Errorf("unknown backend %q", name)
	}
}
