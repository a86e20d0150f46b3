package tokens

import (
	"unicode/utf8"

	"querymind/app/service/session"

	"github.com/tmc/langchaingo/llms"
)

// MessageOverhead approximates the role and separator tokens of a chat message.
const MessageOverhead = 4

// Counter returns the token count of a single string.
type Counter func(text string) int

// Budget estimates the prompt cost of a message log. It holds no state
// besides the counter and is safe for concurrent use.
type Budget struct {
	count Counter
}

type Option func(*Budget)

// WithModel counts with the model's tiktoken encoding.
func WithModel(model string) Option {
	return func(b *Budget) {
		if model == "" {
			return
		}
		b.count = func(text string) int {
			return llms.CountTokens(model, text)
		}
	}
}

func WithCounter(counter Counter) Option {
	return func(b *Budget) {
		if counter != nil {
			b.count = counter
		}
	}
}

func New(opts ...Option) *Budget {
	b := &Budget{count: Approximate}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Approximate assumes four characters per token, rounded up.
func Approximate(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

func (b *Budget) Count(text string) int {
	return b.count(text)
}

// Estimate sums role, content and per-message overhead over the whole log.
// Adding a message never lowers the estimate.
func (b *Budget) Estimate(messages []session.Message) int {
	total := 0
	for _, msg := range messages {
		total += b.count(string(msg.Role)) + b.count(msg.Content) + MessageOverhead
	}
	return total
}
