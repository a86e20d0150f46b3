package session

import (
	"context"
	"slices"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

type memorySession struct {
	messages []Message
	summary  *Summary
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
	}
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, messages ...Message) error {
	if err := ValidateID(sessionID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &memorySession{}
		s.sessions[sessionID] = sess
	}
	sess.messages = append(sess.messages, messages...)

	return nil
}

func (s *MemoryStore) Messages(_ context.Context, sessionID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}

	return slices.Clone(sess.messages), nil
}

func (s *MemoryStore) Summary(_ context.Context, sessionID string) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.summary == nil {
		return nil, nil
	}

	summary := *sess.summary
	return &summary, nil
}

func (s *MemoryStore) SaveSummary(_ context.Context, sessionID string, summary Summary) error {
	if err := ValidateID(sessionID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &memorySession{}
		s.sessions[sessionID] = sess
	}
	sess.summary = &summary

	return nil
}

func (s *MemoryStore) Truncate(_ context.Context, sessionID string, keepRecent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	sess.messages = slices.Clone(keepTail(sess.messages, keepRecent))

	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)

	return nil
}
