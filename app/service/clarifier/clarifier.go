package clarifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"querymind/app/client/llm"
	"querymind/app/service/session"

	"github.com/elliotchance/pie/v2"

	_ "embed"
)

const (
	maxQuestions  = 3
	contextWindow = 5

	llmTemperature = 0.7
	llmMaxTokens   = 200
)

//go:embed system_prompt.txt
var systemPrompt string

//go:embed prompt_template.txt
var promptTemplate string

var fallbackQuestions = []string{
	"Could you provide more details about what you're looking for?",
	"What specific aspect would you like me to focus on?",
}

var errNoQuestions = errors.New("no questions in response")

type Result struct {
	Questions []string `json:"questions"`
	Degraded  bool     `json:"degraded,omitempty"`
}

// Text is the assistant reply shown to the user.
func (r Result) Text() string {
	var sb strings.Builder
	sb.WriteString("I'd like to understand your question better. Could you clarify:\n")
	for _, q := range r.Questions {
		sb.WriteString("\n- ")
		sb.WriteString(q)
	}
	return sb.String()
}

type Generator struct {
	client  llm.Client
	timeout time.Duration
}

func New(client llm.Client, timeout time.Duration) *Generator {
	return &Generator{
		client:  client,
		timeout: timeout,
	}
}

// Generate makes exactly one model call and never fails: errors and
// unparsable output produce the canned questions.
func (g *Generator) Generate(ctx context.Context, query, reason string, history []session.Message) Result {
	questions, err := g.ask(ctx, query, reason, history)
	if err != nil {
		slog.Warn("Clarification fell back to canned questions",
			"error", err,
		)
		return Result{
			Questions: append([]string{}, fallbackQuestions...),
			Degraded:  true,
		}
	}

	return Result{Questions: questions}
}

func (g *Generator) ask(ctx context.Context, query, reason string, history []session.Message) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if reason == "" {
		reason = "unknown"
	}

	contextText := "(No prior context)"
	if len(history) > 0 {
		recent := history[max(0, len(history)-contextWindow):]
		contextText = strings.Join(pie.Map(recent, func(m session.Message) string {
			return fmt.Sprintf("%s: %s", m.Role, m.Content)
		}), "\n")
	}

	templateValues := map[string]any{
		"query":         query,
		"reason":        reason,
		"context":       contextText,
		"max_questions": maxQuestions,
	}

	prompt := promptTemplate
	for key, value := range templateValues {
		prompt = strings.ReplaceAll(prompt, "{"+key+"}", fmt.Sprint(value))
	}

	text, err := g.client.Generate(ctx, llm.Request{
		Prompt:      prompt,
		System:      systemPrompt,
		Temperature: llmTemperature,
		MaxTokens:   llmMaxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("client.Generate: %w", err)
	}

	raw, err := llm.ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	// some backends wrap the array in an object when JSON mode is on
	var parsed []string
	if strings.HasPrefix(raw, "{") {
		var wrapped struct {
			Questions []string `json:"questions"`
		}
		err = json.Unmarshal([]byte(raw), &wrapped)
		parsed = wrapped.Questions
	} else {
		err = json.Unmarshal([]byte(raw), &parsed)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal questions: %w", err)
	}

	questions := pie.Filter(pie.Map(parsed, strings.TrimSpace), func(q string) bool {
		return q != ""
	})
	if len(questions) == 0 {
		return nil, errNoQuestions
	}

	return pie.Top(questions, maxQuestions), nil
}
