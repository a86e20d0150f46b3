package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Kind categorizes an LLM failure so callers can pick a fallback.
type Kind string

const (
	KindTransport   Kind = "transport"
	KindTimeout     Kind = "timeout"
	KindUnavailable Kind = "unavailable"
	KindEmpty       Kind = "empty"
	KindMalformed   Kind = "malformed"
)

var (
	errNoBackends    = errors.New("no backends configured")
	errEmptyResponse = errors.New("empty response")
)

type Error struct {
	Kind    Kind
	Backend string
	Model   string
	Err     error
}

func (e *Error) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s]", e.Kind))

	if e.Backend != "" {
		parts = append(parts, e.Backend)
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	return strings.Join(parts, " ")
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in the chain, or "" for foreign errors.
func KindOf(err error) Kind {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Kind
	}

	return ""
}

func wrapError(backend, model string, err error) error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return err
	}

	return &Error{
		Kind:    classify(err),
		Backend: backend,
		Model:   model,
		Err:     err,
	}
}

func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusPaymentRequired:
			return KindUnavailable
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return KindTimeout
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return KindUnavailable
	}

	return KindTransport
}
