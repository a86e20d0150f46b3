package ambiguity

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

	_ "embed"
)

const (
	confidenceClear     = 0.95
	confidenceRule      = 0.85
	confidenceLLM       = 0.80
	confidenceDegraded  = 0.70
	escalateTokenLength = 20

	llmTemperature = 0.2
	llmMaxTokens   = 100
)

//go:embed system_prompt.txt
var systemPrompt string

//go:embed prompt_template.txt
var promptTemplate string

type Verdict struct {
	IsAmbiguous bool     `json:"is_ambiguous"`
	Reason      string   `json:"reason,omitempty"`
	Confidence  float64  `json:"confidence"`
	UsedLLM     bool     `json:"used_llm"`
	Degraded    bool     `json:"degraded,omitempty"`
	Signals     []Signal `json:"signals,omitempty"`
}

type llmAnswer struct {
	IsAmbiguous *bool  `json:"is_ambiguous"`
	Reason      string `json:"reason"`
}

// Classifier applies cheap lexical rules first and consults the model only
// when rules disagree or the query is long enough for a single rule to be shaky.
type Classifier struct {
	client  llm.Client
	timeout time.Duration
}

func New(client llm.Client, timeout time.Duration) *Classifier {
	return &Classifier{
		client:  client,
		timeout: timeout,
	}
}

// Classify never fails: model errors fall back to the rule verdict.
// history must not include the query itself.
func (c *Classifier) Classify(ctx context.Context, query string, history []session.Message) Verdict {
	f := extract(query, history)
	signals := evaluate(f)

	if len(signals) == 0 {
		return Verdict{Confidence: confidenceClear}
	}

	ruleVerdict := Verdict{
		IsAmbiguous: true,
		Reason:      signals[0].Reason,
		Confidence:  confidenceRule,
		Signals:     signals,
	}

	if len(signals) == 1 && f.tokenCount <= escalateTokenLength {
		return ruleVerdict
	}

	answer, err := c.askModel(ctx, f, signals)
	if err != nil {
		slog.Warn("Ambiguity check fell back to rules",
			"signals", len(signals),
			"error", err,
		)

		ruleVerdict.Confidence = confidenceDegraded
		ruleVerdict.UsedLLM = true
		ruleVerdict.Degraded = true
		return ruleVerdict
	}

	verdict := Verdict{
		IsAmbiguous: *answer.IsAmbiguous,
		Reason:      strings.TrimSpace(answer.Reason),
		Confidence:  confidenceLLM,
		UsedLLM:     true,
		Signals:     signals,
	}
	if verdict.IsAmbiguous && verdict.Reason == "" {
		verdict.Reason = signals[0].Reason
	}
	if !verdict.IsAmbiguous {
		verdict.Reason = ""
	}

	return verdict
}

func (c *Classifier) askModel(ctx context.Context, f *features, signals []Signal) (*llmAnswer, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contextText := "(No prior context)"
	if len(f.context) > 0 {
		lines := make([]string, 0, len(f.context))
		for _, m := range f.context {
			lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
		}
		contextText = strings.Join(lines, "\n")
	}

	reasons := make([]string, 0, len(signals))
	for _, s := range signals {
		reasons = append(reasons, s.Reason)
	}

	templateValues := map[string]any{
		"query":   f.query,
		"signals": strings.Join(reasons, "; "),
		"context": contextText,
	}

	prompt := promptTemplate
	for key, value := range templateValues {
		prompt = strings.ReplaceAll(prompt, "{"+key+"}", fmt.Sprint(value))
	}

	text, err := c.client.Generate(ctx, llm.Request{
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

	var answer llmAnswer
	if err = json.Unmarshal([]byte(raw), &answer); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if answer.IsAmbiguous == nil {
		return nil, errors.New("response has no is_ambiguous field")
	}

	return &answer, nil
}
