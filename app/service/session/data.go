package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const maxIDLength = 256

var ErrInvalidID = errors.New("invalid session id")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is immutable once appended to a session log.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

type UserProfile struct {
	Prefs       []string `json:"prefs"`
	Constraints []string `json:"constraints"`
}

// MessageRange is the half-open index range [From, To) of a summarized slice.
type MessageRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (r MessageRange) Len() int {
	return r.To - r.From
}

// Summary is the structured memory that replaces evicted messages.
// A newer summary replaces the previous one rather than merging with it.
type Summary struct {
	UserProfile            UserProfile  `json:"user_profile"`
	KeyFacts               []string     `json:"key_facts"`
	Decisions              []string     `json:"decisions"`
	OpenQuestions          []string     `json:"open_questions"`
	Todos                  []string     `json:"todos"`
	MessageRangeSummarized MessageRange `json:"message_range_summarized"`
	CreatedAt              time.Time    `json:"created_at"`
	// Degraded marks a free-text fallback summary.
	Degraded bool `json:"degraded,omitempty"`
}

func (s *Summary) IsEmpty() bool {
	return s == nil || (len(s.UserProfile.Prefs) == 0 &&
		len(s.UserProfile.Constraints) == 0 &&
		len(s.KeyFacts) == 0 &&
		len(s.Decisions) == 0 &&
		len(s.OpenQuestions) == 0 &&
		len(s.Todos) == 0)
}

func ValidateID(id string) error {
	if id == "" || len(id) > maxIDLength {
		return ErrInvalidID
	}
	return nil
}
