package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/elliotchance/pie/v2"
)

const (
	maxStructuredAttempts = 3
	structuredTemperature = 0.3
	structuredMaxTokens   = 1000
)

var _ Client = (*Chain)(nil)

// Chain tries its backends in order until one returns a non-empty answer.
type Chain struct {
	backends []Backend
}

func NewChain(backends ...Backend) *Chain {
	return &Chain{
		backends: pie.Filter(backends, func(b Backend) bool { return b != nil }),
	}
}

// Backends returns the backend names in fallback order.
func (c *Chain) Backends() []string {
	return pie.Map(c.backends, func(b Backend) string { return b.Name() })
}

func (c *Chain) Generate(ctx context.Context, req Request) (string, error) {
	if len(c.backends) == 0 {
		return "", &Error{Kind: KindUnavailable, Backend: "chain", Err: errNoBackends}
	}

	var lastErr error

	for i, backend := range c.backends {
		if err := ctx.Err(); err != nil {
			return "", wrapError(backend.Name(), "", err)
		}

		text, err := backend.Generate(ctx, req)
		if err == nil {
			text = strings.TrimSpace(text)
			if text != "" {
				return text, nil
			}
			err = &Error{Kind: KindEmpty, Backend: backend.Name(), Err: errEmptyResponse}
		}

		lastErr = wrapError(backend.Name(), "", err)

		if i+1 < len(c.backends) {
			slog.Warn("LLM backend failed, falling back",
				"backend", backend.Name(),
				"next", c.backends[i+1].Name(),
				"error", lastErr,
			)
		}
	}

	return "", lastErr
}

// GenerateStructured embeds the JSON schema of target in the prompt and retries
// malformed output a bounded number of times. Backend failures are not retried
// since the chain has already fallen back.
func (c *Chain) GenerateStructured(ctx context.Context, prompt, system string, target any) error {
	schema, err := schemaFor(target)
	if err != nil {
		return &Error{Kind: KindMalformed, Backend: "chain", Err: err}
	}

	fullPrompt := prompt +
		"\n\nRespond with a single JSON value matching this JSON schema:\n" + schema.text +
		"\n\nReturn only the JSON, without markdown or commentary."

	var lastErr error

	for attempt := 1; attempt <= maxStructuredAttempts; attempt++ {
		text, err := c.Generate(ctx, Request{
			Prompt:      fullPrompt,
			System:      system,
			Temperature: structuredTemperature,
			MaxTokens:   structuredMaxTokens,
			JSONMode:    true,
		})
		if err != nil {
			return err
		}

		if err = decodeStructured(text, schema, target); err == nil {
			return nil
		}

		lastErr = err
		slog.Debug("Structured output rejected",
			"attempt", attempt,
			"error", err,
		)
	}

	return &Error{Kind: KindMalformed, Backend: "chain", Err: lastErr}
}
