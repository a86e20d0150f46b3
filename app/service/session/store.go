package session

import (
	"context"

	"querymind/app/config"

	"github.com/samber/do"
	"github.com/samber/oops"
)

// Store persists per-session message logs and the latest summary.
type Store interface {
	// Append adds messages to the end of the log in one step.
	Append(ctx context.Context, sessionID string, messages ...Message) error
	Messages(ctx context.Context, sessionID string) ([]Message, error)
	// Summary returns nil when the session has never been summarized.
	Summary(ctx context.Context, sessionID string) (*Summary, error)
	SaveSummary(ctx context.Context, sessionID string, summary Summary) error
	// Truncate keeps only the last keepRecent messages.
	Truncate(ctx context.Context, sessionID string, keepRecent int) error
	Delete(ctx context.Context, sessionID string) error
}

func NewStore(di *do.Injector) (Store, error) {
	cfg := do.MustInvoke[*config.Config](di)

	switch cfg.Storage.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(cfg.Storage.Dir)
	case "sqlite":
		return NewSQLiteStore(cfg.Storage.SQLitePath)
	default:
		return nil, oops.
			In("session").
			With("backend", cfg.Storage.Backend).
			Errorf("unknown storage backend")
	}
}

func keepTail(messages []Message, keepRecent int) []Message {
	if keepRecent <= 0 {
		return nil
	}
	if len(messages) <= keepRecent {
		return messages
	}
	return messages[len(messages)-keepRecent:]
}
