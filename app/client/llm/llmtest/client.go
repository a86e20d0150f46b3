// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"querymind/app/client/llm"
)

var _ llm.Client = (*Client)(nil)

// ErrUnavailable is a ready made backend outage.
var ErrUnavailable = &llm.Error{Kind: llm.KindUnavailable, Backend: "fake", Err: errors.New("backend down")}

// Client records every call and answers through the configured hooks.
// Without hooks Generate answers "ok" and GenerateStructured leaves target untouched.
type Client struct {
	GenerateFunc   func(ctx context.Context, req llm.Request) (string, error)
	StructuredFunc func(ctx context.Context, prompt, system string, target any) error

	mu         sync.Mutex
	requests   []llm.Request
	structured []string
}

// Reply answers every Generate call with text.
func Reply(text string) *Client {
	return &Client{
		GenerateFunc: func(context.Context, llm.Request) (string, error) {
			return text, nil
		},
	}
}

// Fail makes every call return err.
func Fail(err error) *Client {
	return &Client{
		GenerateFunc: func(context.Context, llm.Request) (string, error) {
			return "", err
		},
		StructuredFunc: func(context.Context, string, string, any) error {
			return err
		},
	}
}

// StructuredValue makes GenerateStructured decode value into target through JSON.
func StructuredValue(value any) func(context.Context, string, string, any) error {
	return func(_ context.Context, _, _ string, target any) error {
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, target)
	}
}

func (c *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if c.GenerateFunc == nil {
		return "ok", nil
	}

	return c.GenerateFunc(ctx, req)
}

func (c *Client) GenerateStructured(ctx context.Context, prompt, system string, target any) error {
	c.mu.Lock()
	c.structured = append(c.structured, prompt)
	c.mu.Unlock()

	if c.StructuredFunc == nil {
		return nil
	}

	return c.StructuredFunc(ctx, prompt, system, target)
}

// Requests returns a copy of every Generate request so far.
func (c *Client) Requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]llm.Request(nil), c.requests...)
}

// StructuredPrompts returns the prompts passed to GenerateStructured.
func (c *Client) StructuredPrompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.structured...)
}

// Calls counts both kinds of calls.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.requests) + len(c.structured)
}
