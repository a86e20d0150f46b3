package ambiguity

import (
	"context"
	"testing"
	"time"

	"querymind/app/client/llm"
	"querymind/app/client/llm/llmtest"
	"querymind/app/service/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const longPronounStatement = "I was reading about the training run yesterday and I think it keeps failing " +
	"after the third epoch because the learning rate schedule looks wrong to me"

func userMessages(texts ...string) []session.Message {
	messages := make([]session.Message, 0, len(texts))
	for _, text := range texts {
		messages = append(messages, session.Message{Role: session.RoleUser, Content: text})
	}
	return messages
}

func categories(signals []Signal) []string {
	out := make([]string, 0, len(signals))
	for _, s := range signals {
		out = append(out, s.Category)
	}
	return out
}

func TestRuleTable(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		history []session.Message
		want    []string
	}{
		{name: "clear question", query: "What is the capital of France?", want: []string{}},
		{name: "contraction counts as verb", query: "What's the expected accuracy for our baseline model?", want: []string{}},
		{name: "bare pronoun", query: "It?", want: []string{CategoryReference, CategoryMalformed}},
		{name: "which one without verb", query: "Which one faster?", want: []string{CategoryReference, CategoryMalformed}},
		{name: "choose without object", query: "What should I choose?", want: []string{CategoryMalformed}},
		{name: "choose with object", query: "Which model should I pick first?", want: []string{}},
		{name: "anaphor without antecedent", query: "Can we use the same approach?", want: []string{CategoryReference}},
		{
			name:    "anaphor with antecedent",
			query:   "Can we use the same approach?",
			history: userMessages("We've been using that approach for images"),
			want:    []string{},
		},
		{name: "fragment", query: "Data augmentation techniques.", want: []string{CategoryMalformed}},
		{name: "declarative", query: "We should probably think about the deployment plan soon", want: []string{CategoryIntent}},
		{name: "imperative", query: "Show me how to implement a CNN", want: []string{}},
		{
			name:    "pronoun with single antecedent",
			query:   "How fast is it?",
			history: userMessages("Tell me about PyTorch"),
			want:    []string{},
		},
		{
			name:    "pronoun with several antecedents",
			query:   "How fast is it?",
			history: userMessages("Compare PyTorch and TensorFlow"),
			want:    []string{CategoryReference},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := categories(evaluate(extract(tt.query, tt.history)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContextWindowIsLastThreeMessages(t *testing.T) {
	history := userMessages("Compare PyTorch and TensorFlow", "ok", "sure", "Tell me about JAX")

	f := extract("How fast is it?", history)
	assert.Len(t, f.context, 3)
	assert.Equal(t, "ok sure tell me about jax", f.contextText)
	assert.Equal(t, []string{"sure"}, f.candidates)
}

func TestClassifyClearQuery(t *testing.T) {
	client := llmtest.Fail(llmtest.ErrUnavailable)

	verdict := New(client, time.Second).Classify(context.Background(), "What is the capital of France?", nil)

	assert.False(t, verdict.IsAmbiguous)
	assert.Equal(t, 0.95, verdict.Confidence)
	assert.False(t, verdict.UsedLLM)
	assert.Zero(t, client.Calls())
}

func TestClassifySingleSignalSkipsModel(t *testing.T) {
	client := llmtest.Fail(llmtest.ErrUnavailable)

	verdict := New(client, time.Second).Classify(context.Background(), "Tell me about it.", nil)

	assert.True(t, verdict.IsAmbiguous)
	assert.Equal(t, 0.85, verdict.Confidence)
	assert.False(t, verdict.UsedLLM)
	assert.Contains(t, verdict.Reason, "Unclear reference")
	assert.Zero(t, client.Calls())
}

func TestClassifyEscalatesMultipleSignals(t *testing.T) {
	client := llmtest.Reply("```json\n{\"is_ambiguous\": true, \"reason\": \"unclear subject\"}\n```")

	verdict := New(client, time.Second).Classify(context.Background(), longPronounStatement, nil)

	assert.True(t, verdict.IsAmbiguous)
	assert.Equal(t, 0.80, verdict.Confidence)
	assert.True(t, verdict.UsedLLM)
	assert.Equal(t, "unclear subject", verdict.Reason)
	assert.Equal(t, []string{CategoryReference, CategoryIntent}, categories(verdict.Signals))

	requests := client.Requests()
	require.Len(t, requests, 1)
	assert.True(t, requests[0].JSONMode)
	assert.Equal(t, 0.2, requests[0].Temperature)
	assert.Equal(t, 100, requests[0].MaxTokens)
	assert.Contains(t, requests[0].Prompt, longPronounStatement)
	assert.Contains(t, requests[0].Prompt, "(No prior context)")
}

func TestClassifyEscalatesLongSingleSignal(t *testing.T) {
	query := "Explain to me in detail how it manages memory allocation during distributed training " +
		"across many GPU nodes when the batch size grows very large"
	client := llmtest.Reply(`{"is_ambiguous": false, "reason": ""}`)

	verdict := New(client, time.Second).Classify(context.Background(), query, nil)

	assert.False(t, verdict.IsAmbiguous)
	assert.Empty(t, verdict.Reason)
	assert.True(t, verdict.UsedLLM)
	assert.Equal(t, 0.80, verdict.Confidence)
	assert.Equal(t, 1, client.Calls())
}

func TestClassifyFallsBackOnModelFailure(t *testing.T) {
	tests := map[string]*llmtest.Client{
		"backend down":  llmtest.Fail(&llm.Error{Kind: llm.KindTimeout, Err: context.DeadlineExceeded}),
		"not json":      llmtest.Reply("I think it is ambiguous"),
		"missing field": llmtest.Reply(`{"reason": "x"}`),
	}

	for name, client := range tests {
		t.Run(name, func(t *testing.T) {
			verdict := New(client, time.Second).Classify(context.Background(), longPronounStatement, nil)

			assert.True(t, verdict.IsAmbiguous)
			assert.Equal(t, 0.70, verdict.Confidence)
			assert.True(t, verdict.UsedLLM)
			assert.True(t, verdict.Degraded)
			assert.Contains(t, verdict.Reason, "Unclear reference")
		})
	}
}
