package session

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const maxLineSize = 4 * 1024 * 1024

var _ Store = (*FileStore)(nil)

// FileStore keeps one JSON-lines log and one summary file per session.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}

	return &FileStore{dir: dir}, nil
}

func (s *FileStore) messagesPath(sessionID string) string {
	return filepath.Join(s.dir, url.PathEscape(sessionID)+".jsonl")
}

func (s *FileStore) summaryPath(sessionID string) string {
	return filepath.Join(s.dir, url.PathEscape(sessionID)+".summary.json")
}

func (s *FileStore) Append(ctx context.Context, sessionID string, messages ...Message) error {
	if err := ValidateID(sessionID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.messagesPath(sessionID), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open session file: %w", err)
	}
	defer file.Close()

	return writeMessages(file, messages)
}

func (s *FileStore) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadMessages(sessionID)
}

func (s *FileStore) loadMessages(sessionID string) ([]Message, error) {
	file, err := os.Open(s.messagesPath(sessionID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}
	defer file.Close()

	var messages []Message

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var msg Message
		if err = json.Unmarshal([]byte(line), &msg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON line: %w", err)
		}

		messages = append(messages, msg)
	}

	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading session file: %w", err)
	}

	return messages, nil
}

func (s *FileStore) Summary(ctx context.Context, sessionID string) (*Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.summaryPath(sessionID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read summary file: %w", err)
	}

	var summary Summary
	if err = json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary file: %w", err)
	}

	return &summary, nil
}

func (s *FileStore) SaveSummary(ctx context.Context, sessionID string, summary Summary) error {
	if err := ValidateID(sessionID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return replaceFile(s.summaryPath(sessionID), func(file *os.File) error {
		_, err := file.Write(data)
		return err
	})
}

func (s *FileStore) Truncate(ctx context.Context, sessionID string, keepRecent int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	messages, err := s.loadMessages(sessionID)
	if err != nil {
		return err
	}
	if len(messages) <= keepRecent {
		return nil
	}

	kept := keepTail(messages, keepRecent)

	return replaceFile(s.messagesPath(sessionID), func(file *os.File) error {
		return writeMessages(file, kept)
	})
}

func (s *FileStore) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range []string{s.messagesPath(sessionID), s.summaryPath(sessionID)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", filepath.Base(path), err)
		}
	}

	return nil
}

func writeMessages(file *os.File, messages []Message) error {
	writer := bufio.NewWriter(file)

	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		if _, err = writer.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write message: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	return nil
}

// replaceFile writes through a temp file so readers never see a partial file.
func replaceFile(path string, write func(file *os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err = write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}

	return nil
}
