package memory

import (
	"context"
	"encoding/json"
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
	fallbackMaxRunes    = 600
	fallbackTemperature = 0.3
	fallbackMaxTokens   = 300
)

//go:embed system_prompt.txt
var systemPrompt string

//go:embed prompt_template.txt
var promptTemplate string

//go:embed fallback_prompt.txt
var fallbackPrompt string

// Summarizer condenses messages into a summary that replaces prior.
// It never fails; a summary it could not structure comes back Degraded.
type Summarizer interface {
	Summarize(ctx context.Context, prior *session.Summary, messages []session.Message) session.Summary
}

var _ Summarizer = (*LLMSummarizer)(nil)

type LLMSummarizer struct {
	client  llm.Client
	timeout time.Duration
}

func NewLLMSummarizer(client llm.Client, timeout time.Duration) *LLMSummarizer {
	return &LLMSummarizer{
		client:  client,
		timeout: timeout,
	}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, prior *session.Summary, messages []session.Message) session.Summary {
	transcript := formatTranscript(messages)

	summary, err := s.structured(ctx, prior, transcript)
	if err == nil {
		return summary
	}

	slog.Warn("Structured summarization failed, using free text",
		"kind", llm.KindOf(err),
		"error", err,
	)

	text := transcript
	if llm.KindOf(err) == llm.KindMalformed {
		if generated, genErr := s.freeText(ctx, transcript); genErr == nil {
			text = generated
		} else {
			slog.Warn("Free text summarization failed, using transcript", "error", genErr)
		}
	}

	return degraded(prior, text)
}

func (s *LLMSummarizer) structured(ctx context.Context, prior *session.Summary, transcript string) (session.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	previous := "(none)"
	if !prior.IsEmpty() {
		data, err := json.MarshalIndent(toPayload(prior), "", "  ")
		if err != nil {
			return session.Summary{}, fmt.Errorf("failed to marshal previous summary: %w", err)
		}
		previous = string(data)
	}

	templateValues := map[string]any{
		"previous_summary": previous,
		"conversation":     transcript,
	}

	prompt := promptTemplate
	for key, value := range templateValues {
		prompt = strings.ReplaceAll(prompt, "{"+key+"}", fmt.Sprint(value))
	}

	var payload summaryPayload
	if err := s.client.GenerateStructured(ctx, prompt, systemPrompt, &payload); err != nil {
		return session.Summary{}, fmt.Errorf("client.GenerateStructured: %w", err)
	}

	return session.Summary{
		UserProfile: session.UserProfile{
			Prefs:       clean(payload.UserProfile.Prefs),
			Constraints: clean(payload.UserProfile.Constraints),
		},
		KeyFacts:      clean(payload.KeyFacts),
		Decisions:     clean(payload.Decisions),
		OpenQuestions: clean(payload.OpenQuestions),
		Todos:         clean(payload.Todos),
	}, nil
}

func (s *LLMSummarizer) freeText(ctx context.Context, transcript string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.client.Generate(ctx, llm.Request{
		Prompt:      strings.ReplaceAll(fallbackPrompt, "{conversation}", transcript),
		Temperature: fallbackTemperature,
		MaxTokens:   fallbackMaxTokens,
	})
}

// degraded keeps the prior structured fields and adds text as one synthetic key fact.
func degraded(prior *session.Summary, text string) session.Summary {
	var summary session.Summary
	if prior != nil {
		summary = session.Summary{
			UserProfile: session.UserProfile{
				Prefs:       append([]string{}, prior.UserProfile.Prefs...),
				Constraints: append([]string{}, prior.UserProfile.Constraints...),
			},
			KeyFacts:      append([]string{}, prior.KeyFacts...),
			Decisions:     append([]string{}, prior.Decisions...),
			OpenQuestions: append([]string{}, prior.OpenQuestions...),
			Todos:         append([]string{}, prior.Todos...),
		}
	}

	if excerpt := truncateRunes(strings.TrimSpace(text), fallbackMaxRunes); excerpt != "" {
		summary.KeyFacts = append(summary.KeyFacts, excerpt)
	}
	summary.Degraded = true

	return summary
}

func formatTranscript(messages []session.Message) string {
	return strings.Join(pie.Map(messages, func(m session.Message) string {
		return fmt.Sprintf("%s: %s", strings.ToUpper(string(m.Role)), m.Content)
	}), "\n")
}

func toPayload(s *session.Summary) summaryPayload {
	return summaryPayload{
		UserProfile: profilePayload{
			Prefs:       s.UserProfile.Prefs,
			Constraints: s.UserProfile.Constraints,
		},
		KeyFacts:      s.KeyFacts,
		Decisions:     s.Decisions,
		OpenQuestions: s.OpenQuestions,
		Todos:         s.Todos,
	}
}

func clean(values []string) []string {
	return pie.Filter(pie.Map(values, strings.TrimSpace), func(v string) bool {
		return v != ""
	})
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
