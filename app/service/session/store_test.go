package session

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		if strings.Contains(err.Error(), "unknown driver") {
			t.Skip("SQLite driver not available")
		}
		t.Fatalf("NewSQLiteStore error: %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown() })

	return s
}

func stores(t *testing.T) map[string]Store {
	t.Helper()

	fileStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fileStore,
		"sqlite": newTestSQLiteStore(t),
	}
}

func TestStoreAppendAndRead(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			messages, err := store.Messages(ctx, "s1")
			require.NoError(t, err)
			assert.Empty(t, messages)

			first := NewMessage(RoleUser, "What is gradient descent?")
			second := NewMessage(RoleAssistant, "An optimization method.\nIt follows the gradient.")
			require.NoError(t, store.Append(ctx, "s1", first, second))
			require.NoError(t, store.Append(ctx, "s2", NewMessage(RoleUser, "other session")))

			messages, err = store.Messages(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, messages, 2)
			assert.Equal(t, first.ID, messages[0].ID)
			assert.Equal(t, RoleUser, messages[0].Role)
			assert.Equal(t, second.Content, messages[1].Content)
			assert.True(t, second.Timestamp.Equal(messages[1].Timestamp))
		})
	}
}

func TestStoreTruncateKeepsTail(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var all []Message
			for _, text := range []string{"a", "b", "c", "d", "e", "f"} {
				msg := NewMessage(RoleUser, text)
				all = append(all, msg)
				require.NoError(t, store.Append(ctx, "s1", msg))
			}

			require.NoError(t, store.Truncate(ctx, "s1", 4))
			messages, err := store.Messages(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, messages, 4)
			assert.Equal(t, all[2].ID, messages[0].ID)
			assert.Equal(t, all[5].ID, messages[3].ID)

			require.NoError(t, store.Truncate(ctx, "s1", 10))
			messages, err = store.Messages(ctx, "s1")
			require.NoError(t, err)
			assert.Len(t, messages, 4)

			require.NoError(t, store.Truncate(ctx, "s1", 0))
			messages, err = store.Messages(ctx, "s1")
			require.NoError(t, err)
			assert.Empty(t, messages)
		})
	}
}

func TestStoreSummaryReplaces(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			summary, err := store.Summary(ctx, "s1")
			require.NoError(t, err)
			assert.Nil(t, summary)

			require.NoError(t, store.SaveSummary(ctx, "s1", Summary{
				KeyFacts:               []string{"uses PyTorch"},
				MessageRangeSummarized: MessageRange{From: 0, To: 10},
			}))
			require.NoError(t, store.SaveSummary(ctx, "s1", Summary{
				UserProfile:            UserProfile{Prefs: []string{"short answers"}},
				Decisions:              []string{"switch to JAX"},
				MessageRangeSummarized: MessageRange{From: 0, To: 6},
			}))

			summary, err = store.Summary(ctx, "s1")
			require.NoError(t, err)
			require.NotNil(t, summary)
			assert.Empty(t, summary.KeyFacts)
			assert.Equal(t, []string{"switch to JAX"}, summary.Decisions)
			assert.Equal(t, []string{"short answers"}, summary.UserProfile.Prefs)
			assert.Equal(t, 6, summary.MessageRangeSummarized.To)
		})
	}
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Append(ctx, "s1", NewMessage(RoleUser, "hi")))
			require.NoError(t, store.SaveSummary(ctx, "s1", Summary{KeyFacts: []string{"x"}}))

			require.NoError(t, store.Delete(ctx, "s1"))
			require.NoError(t, store.Delete(ctx, "never-existed"))

			messages, err := store.Messages(ctx, "s1")
			require.NoError(t, err)
			assert.Empty(t, messages)

			summary, err := store.Summary(ctx, "s1")
			require.NoError(t, err)
			assert.Nil(t, summary)
		})
	}
}

func TestStoreRejectsInvalidID(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Append(ctx, "", NewMessage(RoleUser, "hi"))
			assert.ErrorIs(t, err, ErrInvalidID)
		})
	}
}

func TestFileStoreEscapesIDs(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "../escape", NewMessage(RoleUser, "hi")))

	messages, err := store.Messages(ctx, "../escape")
	require.NoError(t, err)
	assert.Len(t, messages, 1)
	assert.True(t, strings.HasPrefix(store.messagesPath("../escape"), dir))
}

func TestSummaryIsEmpty(t *testing.T) {
	var nilSummary *Summary
	assert.True(t, nilSummary.IsEmpty())
	assert.True(t, (&Summary{MessageRangeSummarized: MessageRange{To: 3}}).IsEmpty())
	assert.False(t, (&Summary{Todos: []string{"benchmark"}}).IsEmpty())
}
