package memory

import (
	"context"
	"log/slog"
	"time"

	"querymind/app/client/llm"
	"querymind/app/config"
	"querymind/app/service/session"
	"querymind/app/service/tokens"

	"github.com/samber/do"
	"github.com/samber/oops"
)

// Manager keeps a session log under its token budget. It is the only
// component that shortens a message log.
type Manager struct {
	store      session.Store
	budget     *tokens.Budget
	summarizer Summarizer

	maxTokens      int
	keepRecent     int
	storageTimeout time.Duration
}

type Options struct {
	MaxContextTokens int
	KeepRecent       int
	StorageTimeout   time.Duration
}

func New(di *do.Injector) (*Manager, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewManager(
		do.MustInvoke[session.Store](di),
		do.MustInvoke[*tokens.Budget](di),
		NewLLMSummarizer(do.MustInvoke[*llm.Chain](di), cfg.Pipeline.LLMTimeout),
		Options{
			MaxContextTokens: cfg.Pipeline.MaxContextTokens,
			KeepRecent:       cfg.Pipeline.KeepRecent,
			StorageTimeout:   cfg.Pipeline.StorageTimeout,
		},
	), nil
}

func NewManager(store session.Store, budget *tokens.Budget, summarizer Summarizer, opts Options) *Manager {
	return &Manager{
		store:          store,
		budget:         budget,
		summarizer:     summarizer,
		maxTokens:      opts.MaxContextTokens,
		keepRecent:     opts.KeepRecent,
		storageTimeout: opts.StorageTimeout,
	}
}

// Maintain summarizes and evicts the older part of the log when the stored
// messages plus pending exceed the budget. The caller must hold the session lock.
func (m *Manager) Maintain(ctx context.Context, sessionID string, pending session.Message) (Event, error) {
	var event Event

	stored, err := m.messages(ctx, sessionID)
	if err != nil {
		return event, err
	}

	event.TokenCount = m.budget.Estimate(append(stored[:len(stored):len(stored)], pending))
	if event.TokenCount <= m.maxTokens {
		return event, nil
	}

	to := len(stored) - m.keepRecent
	if m.keepRecent < 0 || to <= 0 {
		slog.Debug("Budget exceeded but nothing to summarize",
			"session_id", sessionID,
			"tokens", event.TokenCount,
			"stored", len(stored),
		)
		return event, nil
	}

	prior, err := m.summary(ctx, sessionID)
	if err != nil {
		return event, err
	}

	summary := m.summarizer.Summarize(ctx, prior, stored[:to])
	summary.MessageRangeSummarized = session.MessageRange{From: 0, To: to}
	summary.CreatedAt = time.Now().UTC()

	if err = m.replace(ctx, sessionID, summary); err != nil {
		return event, err
	}

	event.Triggered = true
	event.Range = summary.MessageRangeSummarized
	event.Evicted = to
	event.Degraded = summary.Degraded
	event.Summary = &summary

	slog.Info("Session summarized",
		"session_id", sessionID,
		"tokens", event.TokenCount,
		"range_to", to,
		"degraded", summary.Degraded,
	)

	return event, nil
}

func (m *Manager) messages(ctx context.Context, sessionID string) ([]session.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, m.storageTimeout)
	defer cancel()

	stored, err := m.store.Messages(ctx, sessionID)
	if err != nil {
		return nil, oops.
			In("memory").
			With("session_id", sessionID).
			Wrapf(err, "failed to load messages")
	}

	return stored, nil
}

func (m *Manager) summary(ctx context.Context, sessionID string) (*session.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, m.storageTimeout)
	defer cancel()

	prior, err := m.store.Summary(ctx, sessionID)
	if err != nil {
		return nil, oops.
			In("memory").
			With("session_id", sessionID).
			Wrapf(err, "failed to load summary")
	}

	return prior, nil
}

// replace stores the summary before truncating, so a failed truncate leaves
// the range re-summarizable instead of losing messages.
func (m *Manager) replace(ctx context.Context, sessionID string, summary session.Summary) error {
	ctx, cancel := context.WithTimeout(ctx, m.storageTimeout)
	defer cancel()

	if err := m.store.SaveSummary(ctx, sessionID, summary); err != nil {
		return oops.
			In("memory").
			With("session_id", sessionID).
			Wrapf(err, "failed to save summary")
	}

	if err := m.store.Truncate(ctx, sessionID, m.keepRecent); err != nil {
		return oops.
			In("memory").
			With("session_id", sessionID).
			With("keep_recent", m.keepRecent).
			Wrapf(err, "failed to truncate messages")
	}

	return nil
}
