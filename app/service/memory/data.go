package memory

import "querymind/app/service/session"

// Event describes what one budget check did to a session.
type Event struct {
	TokenCount int  `json:"token_count"`
	Triggered  bool `json:"triggered"`
	// Range is the summarized slice of the log as it was before eviction.
	Range    session.MessageRange `json:"range"`
	Evicted  int                  `json:"evicted"`
	Degraded bool                 `json:"degraded,omitempty"`
	Summary  *session.Summary     `json:"-"`
}

// summaryPayload is the shape the model is asked to produce.
type summaryPayload struct {
	UserProfile   profilePayload `json:"user_profile" jsonschema:"description=Preferences and constraints the user stated"`
	KeyFacts      []string       `json:"key_facts" jsonschema:"description=Important facts shared in the conversation"`
	Decisions     []string       `json:"decisions" jsonschema:"description=Decisions made or agreed upon"`
	OpenQuestions []string       `json:"open_questions" jsonschema:"description=Questions asked but not resolved"`
	Todos         []string       `json:"todos" jsonschema:"description=Action items mentioned"`
}

type profilePayload struct {
	Prefs       []string `json:"prefs"`
	Constraints []string `json:"constraints"`
}
