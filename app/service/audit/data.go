package audit

import (
	"time"

	"querymind/app/service/session"
)

const (
	conversationsFile = "conversations.jsonl"
	queriesFile       = "queries.jsonl"
	summariesFile     = "summaries.jsonl"
)

type ConversationRecord struct {
	Timestamp         time.Time `json:"timestamp"`
	SessionID         string    `json:"session_id"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
	Metadata          any       `json:"metadata,omitempty"`
}

type QueryRecord struct {
	Timestamp               time.Time `json:"timestamp"`
	SessionID               string    `json:"session_id"`
	OriginalQuery           string    `json:"original_query"`
	IsAmbiguous             bool      `json:"is_ambiguous"`
	RewrittenQuery          string    `json:"rewritten_query,omitempty"`
	NeededContextFromMemory []string  `json:"needed_context_from_memory"`
	ClarifyingQuestions     []string  `json:"clarifying_questions"`
	FinalAugmentedContext   string    `json:"final_augmented_context"`
}

type SummaryRecord struct {
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id"`
	Summary   session.Summary `json:"session_summary"`
}

type entry struct {
	file   string
	record any
}
