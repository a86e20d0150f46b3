package pipeline

import (
	"querymind/app/service/assembler"
	"querymind/app/service/session"
)

type State string

const (
	StateReceived              State = "RECEIVED"
	StateBudgetChecked         State = "BUDGET_CHECKED"
	StateSummarized            State = "SUMMARIZED"
	StateNormalized            State = "NORMALIZED"
	StateAmbiguityResolved     State = "AMBIGUITY_RESOLVED"
	StateAnswerabilityResolved State = "ANSWERABILITY_RESOLVED"
	StateContextAssembled      State = "CONTEXT_ASSEMBLED"
	StateRefined               State = "REFINED"
	StateGenerated             State = "GENERATED"
	StateClarified             State = "CLARIFIED"
	StatePersisted             State = "PERSISTED"
	StateLogged                State = "LOGGED"
	StateReturned              State = "RETURNED"
)

type Result struct {
	Response           string             `json:"response"`
	QueryUnderstanding QueryUnderstanding `json:"query_understanding"`
	SessionMemory      *session.Summary   `json:"session_memory"`
	Metadata           Metadata           `json:"pipeline_metadata"`
	Usage              UsageStats         `json:"llm_usage_stats"`
}

type QueryUnderstanding struct {
	NormalizedQuery         string            `json:"normalized_query"`
	IsAmbiguous             bool              `json:"is_ambiguous"`
	AmbiguityReason         string            `json:"ambiguity_reason,omitempty"`
	AmbiguityConfidence     float64           `json:"ambiguity_confidence"`
	IsAnswerable            bool              `json:"is_answerable"`
	AnswerabilityReason     string            `json:"answerability_reason"`
	AnswerabilityConfidence float64           `json:"answerability_confidence"`
	SimilarPriorQueries     []string          `json:"similar_prior_queries,omitempty"`
	RewrittenQuery          string            `json:"rewritten_query,omitempty"`
	ClarifyingQuestions     []string          `json:"clarifying_questions"`
	ContextFields           []assembler.Field `json:"context_fields"`
}

type Metadata struct {
	SpellingCorrected      bool                  `json:"spelling_corrected"`
	AmbiguityLLMUsed       bool                  `json:"ambiguity_llm_used"`
	ContextExpanded        bool                  `json:"context_expanded"`
	RefinementApplied      bool                  `json:"refinement_applied"`
	LLMCallMade            bool                  `json:"llm_call_made"`
	LLMCalls               int                   `json:"llm_calls"`
	SummarizationTriggered bool                  `json:"summarization_triggered"`
	SummarizationRange     *session.MessageRange `json:"summarization_range,omitempty"`
	Persisted              bool                  `json:"persisted"`
	Degraded               bool                  `json:"degraded"`
	TokenCount             int                   `json:"token_count"`
	ContextTurns           int                   `json:"context_turns"`
	States                 []State               `json:"states"`
}

type UsageStats struct {
	TotalQueries    int64            `json:"total_queries"`
	LLMCalls        int64            `json:"llm_calls"`
	Ratio           float64          `json:"ratio"`
	UsagePercentage string           `json:"usage_percentage"`
	Target          float64          `json:"target"`
	OverTarget      bool             `json:"over_target"`
	ByKind          map[string]int64 `json:"by_kind"`
}
