package llm

import "context"

// Request is a single prompt sent to a backend.
type Request struct {
	Prompt      string
	System      string
	Temperature float64
	MaxTokens   int
	// JSONMode asks the backend to constrain output to a JSON value.
	JSONMode bool
	// Lightweight prefers a small model when the backend has one.
	Lightweight bool
}

// Client is what pipeline components depend on.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
	// GenerateStructured decodes a schema-validated JSON response into target,
	// which must be a pointer.
	GenerateStructured(ctx context.Context, prompt, system string, target any) error
}

// Backend is one concrete model provider.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}
