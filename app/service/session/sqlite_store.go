package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/do"
	_ "modernc.org/sqlite"
)

var (
	_ Store           = (*SQLiteStore)(nil)
	_ do.Shutdownable = (*SQLiteStore)(nil)
)

// SQLiteStore keeps sessions in a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every pooled connection to :memory: would be a separate database
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err = s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) init() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq)`,
		`CREATE TABLE IF NOT EXISTS summaries (
			session_id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, sessionID string, messages ...Message) error {
	if err := ValidateID(sessionID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			_ = err
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, msg := range messages {
		if _, err = stmt.ExecContext(ctx, msg.ID, sessionID, string(msg.Role), msg.Content, msg.Timestamp.UnixNano()); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, created_at FROM messages
		WHERE session_id = ?
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message

	for rows.Next() {
		var (
			msg       Message
			role      string
			createdAt int64
		)
		if err = rows.Scan(&msg.ID, &role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = Role(role)
		msg.Timestamp = time.Unix(0, createdAt).UTC()
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	return messages, nil
}

func (s *SQLiteStore) Summary(ctx context.Context, sessionID string) (*Summary, error) {
	var payload string

	err := s.db.QueryRowContext(ctx, `SELECT payload FROM summaries WHERE session_id = ?`, sessionID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}

	var summary Summary
	if err = json.Unmarshal([]byte(payload), &summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary: %w", err)
	}

	return &summary, nil
}

func (s *SQLiteStore) SaveSummary(ctx context.Context, sessionID string, summary Summary) error {
	if err := ValidateID(sessionID); err != nil {
		return err
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO summaries (session_id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`, sessionID, string(payload), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Truncate(ctx context.Context, sessionID string, keepRecent int) error {
	if keepRecent < 0 {
		keepRecent = 0
	}

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE session_id = ? AND seq NOT IN (
			SELECT seq FROM messages WHERE session_id = ? ORDER BY seq DESC LIMIT ?
		)
	`, sessionID, sessionID, keepRecent)
	if err != nil {
		return fmt.Errorf("failed to truncate messages: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM summaries WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete summary: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) Shutdown() error {
	return s.db.Close()
}
